// Package observability exports histogram operation metrics to Prometheus.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/hyperhist"
)

const namespace = "hyperhist"

// PrometheusCollector implements hyperhist.MetricsCollector on top of a
// dedicated Prometheus registry.
type PrometheusCollector struct {
	registry *prometheus.Registry

	opLatency   *prometheus.HistogramVec
	operations  *prometheus.CounterVec
	points      *prometheus.CounterVec
	overflow    prometheus.Counter
	removedBins prometheus.Counter
	bins        prometheus.Gauge
}

var _ hyperhist.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheusCollector creates a collector with its own registry.
func NewPrometheusCollector() *PrometheusCollector {
	c := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_latency_seconds",
			Help:      "Latency of histogram operations",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Histogram operations by outcome",
		}, []string{"op", "status"}),
		points: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_total",
			Help:      "Points filled or looked up",
		}, []string{"op"}),
		overflow: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overflow_points_total",
			Help:      "Filled points that found no bin",
		}),
		removedBins: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compaction_removed_bins_total",
			Help:      "Bins removed by content compaction",
		}),
		bins: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "merged_bins",
			Help:      "Bin count after the last merge",
		}),
	}

	c.registry.MustRegister(c.opLatency, c.operations, c.points, c.overflow, c.removedBins, c.bins)

	return c
}

// Registry returns the registry the collector registers into.
func (c *PrometheusCollector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics to path in the text format read
// by the node exporter textfile collector.
func (c *PrometheusCollector) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, c.registry)
}

func (c *PrometheusCollector) observe(op string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.operations.WithLabelValues(op, status).Inc()
	c.opLatency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordFill implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordFill(count, overflow int, duration time.Duration) {
	c.observe("fill", duration, nil)
	c.points.WithLabelValues("fill").Add(float64(count))
	c.overflow.Add(float64(overflow))
}

// RecordLookup implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordLookup(count int, duration time.Duration) {
	c.observe("lookup", duration, nil)
	c.points.WithLabelValues("lookup").Add(float64(count))
}

// RecordMerge implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordMerge(bins int, duration time.Duration, err error) {
	c.observe("merge", duration, err)
	if err == nil {
		c.bins.Set(float64(bins))
	}
}

// RecordCompaction implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordCompaction(removed, _ int, duration time.Duration, err error) {
	c.observe("compact", duration, err)
	c.removedBins.Add(float64(removed))
}

// RecordSave implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordSave(duration time.Duration, err error) {
	c.observe("save", duration, err)
}

// RecordLoad implements hyperhist.MetricsCollector.
func (c *PrometheusCollector) RecordLoad(duration time.Duration, err error) {
	c.observe("load", duration, err)
}
