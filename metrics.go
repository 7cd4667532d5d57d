package phyalf

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordStage is called after each conversion stage.
	RecordStage(stage Stage, duration time.Duration, err error)

	// RecordWrite is called for every output file written.
	RecordWrite(path string, bytes int64)

	// RecordSkip is called for every output left untouched.
	RecordSkip(path string)

	// RecordUpload is called after each blob upload during Publish.
	RecordUpload(name string, bytes int64, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordStage(Stage, time.Duration, error)          {}
func (NoopMetricsCollector) RecordWrite(string, int64)                        {}
func (NoopMetricsCollector) RecordSkip(string)                                {}
func (NoopMetricsCollector) RecordUpload(string, int64, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	StageCount       atomic.Int64
	StageErrors      atomic.Int64
	StageTotalNanos  atomic.Int64
	WriteCount       atomic.Int64
	WriteBytes       atomic.Int64
	SkipCount        atomic.Int64
	UploadCount      atomic.Int64
	UploadErrors     atomic.Int64
	UploadBytes      atomic.Int64
	UploadTotalNanos atomic.Int64
}

// RecordStage implements MetricsCollector.
func (b *BasicMetricsCollector) RecordStage(_ Stage, duration time.Duration, err error) {
	b.StageCount.Add(1)
	b.StageTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.StageErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(_ string, bytes int64) {
	b.WriteCount.Add(1)
	b.WriteBytes.Add(bytes)
}

// RecordSkip implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSkip(string) {
	b.SkipCount.Add(1)
}

// RecordUpload implements MetricsCollector.
func (b *BasicMetricsCollector) RecordUpload(_ string, bytes int64, duration time.Duration, err error) {
	b.UploadCount.Add(1)
	b.UploadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.UploadErrors.Add(1)
		return
	}
	b.UploadBytes.Add(bytes)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		StageCount:     b.StageCount.Load(),
		StageErrors:    b.StageErrors.Load(),
		StageAvgNanos:  avg(b.StageTotalNanos.Load(), b.StageCount.Load()),
		WriteCount:     b.WriteCount.Load(),
		WriteBytes:     b.WriteBytes.Load(),
		SkipCount:      b.SkipCount.Load(),
		UploadCount:    b.UploadCount.Load(),
		UploadErrors:   b.UploadErrors.Load(),
		UploadBytes:    b.UploadBytes.Load(),
		UploadAvgNanos: avg(b.UploadTotalNanos.Load(), b.UploadCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	StageCount     int64
	StageErrors    int64
	StageAvgNanos  int64
	WriteCount     int64
	WriteBytes     int64
	SkipCount      int64
	UploadCount    int64
	UploadErrors   int64
	UploadBytes    int64
	UploadAvgNanos int64
}
