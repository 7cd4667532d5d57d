package phyalf

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"time"

	vecmath "github.com/cwbudde/algo-vecmath"

	"github.com/hupe1980/phyalf/alf"
	"github.com/hupe1980/phyalf/internal/cluster"
	"github.com/hupe1980/phyalf/internal/depth"
	"github.com/hupe1980/phyalf/internal/fs"
	"github.com/hupe1980/phyalf/internal/migrate"
	"github.com/hupe1980/phyalf/internal/waveform"
	"github.com/hupe1980/phyalf/model"
	"github.com/hupe1980/phyalf/npy"
	"github.com/hupe1980/phyalf/sparse"
)

// SortingResult is the read-only spike sorting output a Converter reads.
// *model.TemplateModel implements it.
type SortingResult interface {
	Dir() string

	SpikeTimes() []float64
	SpikeSamples() []int64
	SpikeClusters() []int64
	Amplitudes() []float64

	ChannelPositions() *npy.Array[float64]
	ChannelProbes() []int64
	ChannelMapping() []int64

	TemplatesChannels() []int64
	TemplatesAmplitudes() []float64
	TemplatesWaveformsDurations() []float64
	SparseTemplates() *sparse.Tensor
	// SparseFeatures returns nil when no features were computed.
	SparseFeatures() *sparse.Tensor
	NTemplates() int
}

var _ SortingResult = (*model.TemplateModel)(nil)

// Passthrough file copied from the source directory.
type passthrough struct {
	src, dst string
	squeeze  bool
}

var passthroughFiles = []passthrough{
	{"params.py", "params.py", false},
	{"cluster_metrics.csv", alf.ClustersMetrics, false},
	{"spike_clusters.npy", alf.SpikesClusters, true},
	{"spike_templates.npy", alf.SpikesTemplates, true},
	{"channel_positions.npy", alf.ChannelsLocalCoordinates, false},
	{"channel_probe.npy", alf.ChannelsProbes, true},
	{"cluster_probes.npy", alf.ClustersProbes, true},
	{"cluster_shanks.npy", alf.ClustersShanks, true},
}

// scratchFiles are removed from the source directory after a conversion.
var scratchFiles = []string{"temp_wh.dat"}

// Converter turns a SortingResult into an ALF dataset.
type Converter struct {
	src  SortingResult
	opts options
}

// NewConverter returns a Converter reading from src.
func NewConverter(src SortingResult, opts ...Option) *Converter {
	return &Converter{src: src, opts: applyOptions(opts)}
}

// Convert is a shortcut for NewConverter(src, opts...).Convert(ctx, dest).
func Convert(ctx context.Context, src SortingResult, dest string, opts ...Option) (*model.TemplateModel, error) {
	return NewConverter(src, opts...).Convert(ctx, dest)
}

// Convert writes the ALF dataset into dest.
//
// Outputs that already exist (under their plain or labelled name) are left
// untouched unless WithForce is set. A failure part way through leaves the
// files written so far; rerun with WithForce to recover.
//
// When dest contains params.py afterwards, the converted dataset is loaded
// and returned. Otherwise the returned model is nil.
func (c *Converter) Convert(ctx context.Context, dest string) (*model.TemplateModel, error) {
	same, err := samePath(c.src.Dir(), dest)
	if err != nil {
		return nil, err
	}
	if same {
		return nil, fmt.Errorf("%w: %s", ErrConfiguration, dest)
	}

	r := c.newRun(dest)
	r.log.InfoContext(ctx, "converting dataset to ALF", "src", c.src.Dir())

	if err := c.opts.fsys.MkdirAll(dest, 0o755); err != nil {
		return nil, err
	}

	stages := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageCopy, r.copyFiles},
		{StageSpikes, r.spikes},
		{StageClusters, r.clusters},
		{StageChannels, r.channels},
		{StageDepths, r.depths},
		{StageTemplates, r.templates},
		{StageCleanup, r.cleanup},
		{StageRename, r.rename},
	}
	for _, s := range stages {
		start := time.Now()
		err := s.fn(ctx)
		d := time.Since(start)
		c.opts.metricsCollector.RecordStage(s.stage, d, err)
		r.log.LogStage(ctx, s.stage, d, err)
		if err != nil {
			return nil, translateError(fmt.Errorf("%s: %w", s.stage, err))
		}
		if c.opts.progress != nil {
			c.opts.progress(s.stage, s.stage.Weight())
		}
	}

	ok, err := fs.Exists(c.opts.fsys, filepath.Join(dest, "params.py"))
	if err != nil || !ok {
		return nil, err
	}
	return model.Load(dest)
}

// samePath compares two directories after resolving them to absolute,
// symlink-free paths. Paths that do not exist yet are compared as given.
func samePath(a, b string) (bool, error) {
	ra, err := resolve(a)
	if err != nil {
		return false, err
	}
	rb, err := resolve(b)
	if err != nil {
		return false, err
	}
	return ra == rb, nil
}

func resolve(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return abs, nil
		}
		return "", err
	}
	return resolved, nil
}

// run holds the state of one Convert call.
type run struct {
	src  SortingResult
	opts options
	dest string
	log  *Logger
	mig  *migrate.Migrator
}

func (c *Converter) newRun(dest string) *run {
	r := &run{
		src:  c.src,
		opts: c.opts,
		dest: dest,
		log:  c.opts.logger.WithDir(dest),
	}
	r.mig = migrate.New(c.opts.fsys, r.log.Logger)
	r.mig.Exists = r.written
	r.mig.OnSkip = func(path, _ string) { c.opts.metricsCollector.RecordSkip(path) }
	r.mig.OnWrite = c.opts.metricsCollector.RecordWrite
	return r
}

// written reports whether path or its labelled twin exists.
func (r *run) written(path string) (bool, error) {
	ok, err := fs.Exists(r.opts.fsys, path)
	if err != nil || ok {
		return ok, err
	}
	if r.opts.label == "" {
		return false, nil
	}
	dir, base := filepath.Split(path)
	twin := alf.Labelled(base, r.opts.label)
	if twin == base {
		return false, nil
	}
	return fs.Exists(r.opts.fsys, filepath.Join(dir, twin))
}

func (r *run) path(name string) string { return filepath.Join(r.dest, name) }

// write creates dest/name through fn unless the no-clobber rule skips it.
func (r *run) write(ctx context.Context, name string, fn func(io.Writer) (int64, error)) error {
	dst := r.path(name)
	ok, err := r.mig.Prepare(ctx, "", dst, r.opts.force)
	if err != nil || !ok {
		return err
	}

	f, err := fs.Create(r.opts.fsys, dst)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	n, err := fn(w)
	if err == nil {
		err = w.Flush()
	}
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	r.opts.metricsCollector.RecordWrite(dst, n)
	r.log.LogWrite(ctx, dst, n)
	return nil
}

func save[T npy.Number](ctx context.Context, r *run, name string, a *npy.Array[T]) error {
	return r.write(ctx, name, func(w io.Writer) (int64, error) {
		return npy.Write(w, a)
	})
}

func (r *run) copyFiles(ctx context.Context) error {
	for _, p := range passthroughFiles {
		src := filepath.Join(r.src.Dir(), p.src)
		if _, err := r.mig.Migrate(ctx, src, r.path(p.dst), p.squeeze, r.opts.force); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) spikes(ctx context.Context) error {
	if err := save(ctx, r, alf.SpikesTimes, npy.Vector(r.src.SpikeTimes())); err != nil {
		return err
	}
	if err := save(ctx, r, alf.SpikesSamples, npy.Vector(r.src.SpikeSamples())); err != nil {
		return err
	}
	return save(ctx, r, alf.SpikesAmps, npy.Vector(scaled(r.src.Amplitudes(), r.opts.ampScale)))
}

func (r *run) clusters(ctx context.Context) error {
	if err := save(ctx, r, alf.ClustersChannels, npy.Vector(r.src.TemplatesChannels())); err != nil {
		return err
	}
	if err := save(ctx, r, alf.ClustersPeakToTrough, npy.Vector(r.src.TemplatesWaveformsDurations())); err != nil {
		return err
	}

	table, err := cluster.NewTable(r.src.SpikeClusters())
	if err != nil {
		return err
	}
	r.log.DebugContext(ctx, "cluster table",
		"observed", table.Len(),
		"min", table.Min(),
		"max", table.Max(),
	)
	amps := table.Scalars(r.src.TemplatesAmplitudes(), r.opts.ampScale)
	if err := save(ctx, r, alf.ClustersAmps, npy.Vector(amps)); err != nil {
		return err
	}

	return r.write(ctx, alf.ClustersUUIDs, func(w io.Writer) (int64, error) {
		ids, err := table.UUIDs(r.opts.idGen)
		if err != nil {
			return 0, err
		}
		var buf bytes.Buffer
		if err := cluster.WriteUUIDs(&buf, ids); err != nil {
			return 0, err
		}
		return buf.WriteTo(w)
	})
}

func (r *run) channels(ctx context.Context) error {
	probes, mapping := r.src.ChannelProbes(), r.src.ChannelMapping()
	if len(probes) != len(mapping) {
		return &ErrShapeMismatch{Name: "channel mapping", Expected: []int{len(probes)}, Actual: []int{len(mapping)}}
	}
	return save(ctx, r, alf.ChannelsRawInd, npy.Vector(rawIndices(probes, mapping)))
}

// rawIndices converts the global channel map into per-probe indices. Probes
// are visited in ascending id order; each probe's indices are offset by the
// accumulated maximum mapping of the probes before it.
func rawIndices(probes, mapping []int64) []int64 {
	ids := slices.Clone(probes)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	out := make([]int64, len(probes))
	var offset int64
	for _, p := range ids {
		var hi int64
		first := true
		for i, q := range probes {
			if q != p {
				continue
			}
			out[i] = mapping[i] - offset
			if first || mapping[i] > hi {
				hi, first = mapping[i], false
			}
		}
		offset += hi
	}
	return out
}

func (r *run) depths(ctx context.Context) error {
	positions := r.src.ChannelPositions()
	if positions == nil || positions.NDim() != 2 {
		var shape []int
		if positions != nil {
			shape = positions.Shape
		}
		return &ErrShapeMismatch{Name: "channel positions", Expected: []int{-1, 2}, Actual: shape}
	}

	channels, err := r.readOutput(alf.ClustersChannels)
	if err != nil {
		return err
	}
	if channels.NDim() != 1 {
		return &ErrShapeMismatch{Name: alf.ClustersChannels, Expected: []int{channels.Size()}, Actual: channels.Shape}
	}

	clusterDepths, err := depth.Clusters(positions, channels.Data)
	if err != nil {
		return err
	}
	spikeDepths, err := depth.Spikes(depth.SpikeInput{
		Positions:     positions,
		SpikeClusters: r.src.SpikeClusters(),
		ClusterDepths: clusterDepths,
		Features:      r.src.SparseFeatures(),
	}, r.opts.depthBatch)
	if err != nil {
		return err
	}

	if err := save(ctx, r, alf.SpikesDepths, npy.Vector(spikeDepths)); err != nil {
		return err
	}
	return save(ctx, r, alf.ClustersDepths, npy.Vector(clusterDepths))
}

// readOutput loads an array written by an earlier stage, under its plain or
// labelled name.
func (r *run) readOutput(name string) (*npy.Array[int64], error) {
	p := r.path(name)
	if r.opts.label != "" {
		ok, err := fs.Exists(r.opts.fsys, p)
		if err != nil {
			return nil, err
		}
		if !ok {
			p = r.path(alf.Labelled(name, r.opts.label))
		}
	}
	data, err := fs.ReadFile(r.opts.fsys, p)
	if err != nil {
		return nil, err
	}
	a, err := npy.Read[int64](bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	return a, nil
}

func (r *run) templates(ctx context.Context) error {
	t := r.src.SparseTemplates()
	if t == nil {
		return fmt.Errorf("%w: no templates", ErrInvalidInput)
	}
	if t.Rows() != r.src.NTemplates() {
		return &ErrShapeMismatch{Name: "templates", Expected: []int{r.src.NTemplates()}, Actual: t.Shape()}
	}

	layout := waveform.Layout{Positions: r.src.ChannelPositions(), Probes: r.src.ChannelProbes()}
	wf, err := waveform.Extract(t, r.src.TemplatesChannels(), layout, r.opts.channels, r.opts.ampScale)
	if err != nil {
		return err
	}

	for _, name := range []string{alf.TemplatesWaveforms, alf.ClustersWaveforms} {
		if err := save(ctx, r, name, wf.Data); err != nil {
			return err
		}
	}
	for _, name := range []string{alf.TemplatesWaveformsChannels, alf.ClustersWaveformsChannels} {
		if err := save(ctx, r, name, wf.Channels); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) cleanup(ctx context.Context) error {
	for _, name := range scratchFiles {
		if _, err := r.mig.Remove(ctx, filepath.Join(r.src.Dir(), name)); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) rename(ctx context.Context) error {
	if r.opts.label == "" {
		return nil
	}
	entries, err := r.opts.fsys.ReadDir(r.dest)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		n, err := alf.Parse(e.Name())
		if err != nil || n.Label != "" || !alf.IsObject(n.Object) {
			continue
		}
		src := r.path(e.Name())
		dst := r.path(n.WithLabel(r.opts.label).String())
		if !r.opts.force {
			ok, err := fs.Exists(r.opts.fsys, dst)
			if err != nil {
				return err
			}
			if ok {
				r.log.LogSkip(ctx, dst, migrate.ReasonExists)
				r.opts.metricsCollector.RecordSkip(dst)
				continue
			}
		}
		if err := r.opts.fsys.Rename(src, dst); err != nil {
			return err
		}
		r.log.DebugContext(ctx, "renamed file", "src", src, "dst", dst)
	}
	return nil
}

func scaled(v []float64, scale float64) []float64 {
	out := make([]float64, len(v))
	vecmath.ScaleBlock(out, v, scale)
	return out
}
