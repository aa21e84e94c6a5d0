package hyperhist

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// The observability package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordFill is called after each fill call. count is the number of
	// points, overflow the number that found no bin.
	RecordFill(count, overflow int, duration time.Duration)

	// RecordLookup is called after each value lookup.
	RecordLookup(count int, duration time.Duration)

	// RecordMerge is called after each merge with the resulting bin count.
	RecordMerge(bins int, duration time.Duration, err error)

	// RecordCompaction is called after MergeBinsWithSameContent.
	RecordCompaction(removed, passes int, duration time.Duration, err error)

	// RecordSave is called after each save to a store.
	RecordSave(duration time.Duration, err error)

	// RecordLoad is called after each load from a store.
	RecordLoad(duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordFill(int, int, time.Duration)              {}
func (NoopMetricsCollector) RecordLookup(int, time.Duration)                 {}
func (NoopMetricsCollector) RecordMerge(int, time.Duration, error)           {}
func (NoopMetricsCollector) RecordCompaction(int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(time.Duration, error)                 {}
func (NoopMetricsCollector) RecordLoad(time.Duration, error)                 {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	FillCount        atomic.Int64
	FillPoints       atomic.Int64
	FillOverflow     atomic.Int64
	FillTotalNanos   atomic.Int64
	LookupCount      atomic.Int64
	LookupPoints     atomic.Int64
	LookupTotalNanos atomic.Int64
	MergeCount       atomic.Int64
	MergeErrors      atomic.Int64
	CompactionCount  atomic.Int64
	CompactionErrors atomic.Int64
	RemovedBins      atomic.Int64
	SaveCount        atomic.Int64
	SaveErrors       atomic.Int64
	LoadCount        atomic.Int64
	LoadErrors       atomic.Int64
}

// RecordFill implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFill(count, overflow int, duration time.Duration) {
	b.FillCount.Add(1)
	b.FillPoints.Add(int64(count))
	b.FillOverflow.Add(int64(overflow))
	b.FillTotalNanos.Add(duration.Nanoseconds())
}

// RecordLookup implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLookup(count int, duration time.Duration) {
	b.LookupCount.Add(1)
	b.LookupPoints.Add(int64(count))
	b.LookupTotalNanos.Add(duration.Nanoseconds())
}

// RecordMerge implements MetricsCollector.
func (b *BasicMetricsCollector) RecordMerge(_ int, _ time.Duration, err error) {
	b.MergeCount.Add(1)
	if err != nil {
		b.MergeErrors.Add(1)
	}
}

// RecordCompaction implements MetricsCollector.
func (b *BasicMetricsCollector) RecordCompaction(removed, _ int, _ time.Duration, err error) {
	b.CompactionCount.Add(1)
	b.RemovedBins.Add(int64(removed))
	if err != nil {
		b.CompactionErrors.Add(1)
	}
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(_ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
	}
}

// RecordLoad implements MetricsCollector.
func (b *BasicMetricsCollector) RecordLoad(_ time.Duration, err error) {
	b.LoadCount.Add(1)
	if err != nil {
		b.LoadErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		FillCount:        b.FillCount.Load(),
		FillPoints:       b.FillPoints.Load(),
		FillOverflow:     b.FillOverflow.Load(),
		FillAvgNanos:     avg(b.FillTotalNanos.Load(), b.FillCount.Load()),
		LookupCount:      b.LookupCount.Load(),
		LookupPoints:     b.LookupPoints.Load(),
		LookupAvgNanos:   avg(b.LookupTotalNanos.Load(), b.LookupCount.Load()),
		MergeCount:       b.MergeCount.Load(),
		MergeErrors:      b.MergeErrors.Load(),
		CompactionCount:  b.CompactionCount.Load(),
		CompactionErrors: b.CompactionErrors.Load(),
		RemovedBins:      b.RemovedBins.Load(),
		SaveCount:        b.SaveCount.Load(),
		SaveErrors:       b.SaveErrors.Load(),
		LoadCount:        b.LoadCount.Load(),
		LoadErrors:       b.LoadErrors.Load(),
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
	FillCount        int64
	FillPoints       int64
	FillOverflow     int64
	FillAvgNanos     int64
	LookupCount      int64
	LookupPoints     int64
	LookupAvgNanos   int64
	MergeCount       int64
	MergeErrors      int64
	CompactionCount  int64
	CompactionErrors int64
	RemovedBins      int64
	SaveCount        int64
	SaveErrors       int64
	LoadCount        int64
	LoadErrors       int64
}
