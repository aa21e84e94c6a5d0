package hyperhist

import (
	"log/slog"

	"github.com/hupe1980/hyperhist/binning"
)

// CompactionMode selects how MergeBinsWithSameContent fills the rebuilt
// histogram.
type CompactionMode uint8

const (
	// PreserveIntegral gives every surviving bin the summed content and
	// squared weights of the bins it replaces. The total content is unchanged.
	PreserveIntegral CompactionMode = iota

	// PreserveValues evaluates the original histogram at the volume-weighted
	// centre of every surviving bin and zeroes the errors.
	PreserveValues
)

func (m CompactionMode) String() string {
	if m == PreserveValues {
		return "preserve-values"
	}
	return "preserve-integral"
}

type options struct {
	metricsCollector MetricsCollector
	logger           *Logger
	compactionMode   CompactionMode
	residency        binning.Residency
	names            []string
	keepGenerations  bool
}

// Option configures histogram construction and loading.
type Option func(*options)

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &hyperhist.BasicMetricsCollector{}
//	h, _ := hyperhist.New(b, hyperhist.WithMetricsCollector(metrics))
//	// ... fill h ...
//	stats := metrics.GetStats()
//	fmt.Printf("Fills: %d, overflow: %d\n", stats.FillCount, stats.FillOverflow)
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

// WithCompactionMode selects the content rule of MergeBinsWithSameContent.
// The default is PreserveIntegral.
func WithCompactionMode(m CompactionMode) Option {
	return func(o *options) {
		o.compactionMode = m
	}
}

// WithResidency selects where the nodes of a loaded binning live. Load
// defaults to MemoryResident; LoadEmpty and MergeStored always use
// StoreBacked.
func WithResidency(r binning.Residency) Option {
	return func(o *options) {
		o.residency = r
	}
}

// WithNames labels the dimensions of a new histogram.
func WithNames(names ...string) Option {
	return func(o *options) {
		o.names = names
	}
}

// WithKeepGenerations keeps superseded store generations when a
// store-backed histogram is closed or compacted. By default they are pruned.
func WithKeepGenerations(keep bool) Option {
	return func(o *options) {
		o.keepGenerations = keep
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		compactionMode:   PreserveIntegral,
		residency:        binning.MemoryResident,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
