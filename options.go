package phyalf

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/hupe1980/phyalf/internal/depth"
	"github.com/hupe1980/phyalf/internal/fs"
	"github.com/hupe1980/phyalf/internal/waveform"
)

type options struct {
	force            bool
	label            string
	ampScale         float64
	logger           *Logger
	metricsCollector MetricsCollector
	progress         ProgressFunc
	fsys             fs.FileSystem
	depthBatch       int
	idGen            func() (uuid.UUID, error)
	channels         int
}

// Option configures a Converter.
type Option func(*options)

// WithForce makes every stage replace existing outputs instead of skipping
// them.
func WithForce(force bool) Option {
	return func(o *options) {
		o.force = force
	}
}

// WithLabel appends label to every object file name, so that
// spikes.times.npy becomes spikes.times.<label>.npy.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithAmplitudeScale multiplies spike, cluster and template amplitudes by
// scale. Depths are never scaled.
func WithAmplitudeScale(scale float64) Option {
	return func(o *options) {
		o.ampScale = scale
	}
}

// WithMetricsCollector configures a metrics collector for monitoring conversions.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &phyalf.BasicMetricsCollector{}
//	_, _ = phyalf.Convert(ctx, model, "./alf", phyalf.WithMetricsCollector(metrics))
//	stats := metrics.GetStats()
//	fmt.Printf("Written: %d, Skipped: %d\n", stats.WriteCount, stats.SkipCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := phyalf.NewJSONLogger(slog.LevelInfo)
//	c := phyalf.NewConverter(model, phyalf.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithProgress registers a callback invoked after each stage.
func WithProgress(fn ProgressFunc) Option {
	return func(o *options) {
		o.progress = fn
	}
}

// WithFileSystem routes every file operation through fsys.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fsys = fsys
	}
}

// WithDepthBatchSize sets the number of spikes per feature batch when
// computing spike depths. Values <= 0 select the default of 50000.
func WithDepthBatchSize(n int) Option {
	return func(o *options) {
		o.depthBatch = n
	}
}

// WithIDGenerator replaces the random UUID source used for
// clusters.uuids.csv.
func WithIDGenerator(gen func() (uuid.UUID, error)) Option {
	return func(o *options) {
		o.idGen = gen
	}
}

// WithWaveformChannels sets how many nearest channels are kept per template.
func WithWaveformChannels(n int) Option {
	return func(o *options) {
		o.channels = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		ampScale:         1,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		fsys:             fs.Default,
		depthBatch:       depth.DefaultBatchSize,
		idGen:            uuid.NewRandom,
		channels:         waveform.DefaultChannels,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.fsys == nil {
		o.fsys = fs.Default
	}
	if o.depthBatch <= 0 {
		o.depthBatch = depth.DefaultBatchSize
	}
	if o.channels <= 0 {
		o.channels = waveform.DefaultChannels
	}
	if o.idGen == nil {
		o.idGen = uuid.NewRandom
	}
	return o
}
