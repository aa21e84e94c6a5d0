package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/hyperhist"
	"github.com/hupe1980/hyperhist/binning"
	"github.com/hupe1980/hyperhist/geom"
)

func build(t *testing.T, c *PrometheusCollector) *hyperhist.Histogram {
	t.Helper()
	domain := geom.MustBox([]float64{0, 0}, []float64{10, 10})
	h, err := hyperhist.Build(domain, geom.PointSet{geom.NewPoint(5, 5)}, binning.GridBuilder{Depth: 2},
		binning.NewBuildOptions(), hyperhist.WithMetricsCollector(c))
	require.NoError(t, err)
	return h
}

func TestPrometheusCollectorCountsFills(t *testing.T) {
	c := NewPrometheusCollector()
	h := build(t, c)

	_, err := h.FillSet(geom.PointSet{geom.NewPoint(1, 1), geom.NewPoint(20, 20), geom.NewPoint(3, 7)})
	require.NoError(t, err)
	_, err = h.Val(geom.NewPoint(1, 1))
	require.NoError(t, err)

	assert.Equal(t, 4.0, testutil.ToFloat64(c.points.WithLabelValues("fill")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.points.WithLabelValues("lookup")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.overflow))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.operations.WithLabelValues("fill", "ok")))
}

func TestPrometheusCollectorMergeAndCompaction(t *testing.T) {
	c := NewPrometheusCollector()
	h := build(t, c)
	other := build(t, NewPrometheusCollector())

	require.NoError(t, h.Merge(other))
	assert.Equal(t, 8.0, testutil.ToFloat64(c.bins))

	c.RecordCompaction(3, 2, time.Millisecond, nil)
	c.RecordSave(time.Millisecond, errors.New("boom"))

	assert.Equal(t, 3.0, testutil.ToFloat64(c.removedBins))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.operations.WithLabelValues("save", "error")))
	assert.Equal(t, 4, testutil.CollectAndCount(c.opLatency))
}

func TestPrometheusCollectorHandler(t *testing.T) {
	c := NewPrometheusCollector()
	c.RecordLoad(time.Millisecond, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `hyperhist_operations_total{op="load",status="ok"} 1`)
}

func TestPrometheusCollectorWriteTextfile(t *testing.T) {
	c := NewPrometheusCollector()
	c.RecordFill(10, 2, time.Millisecond)

	path := filepath.Join(t.TempDir(), "hyperhist.prom")
	require.NoError(t, c.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hyperhist_overflow_points_total 2")
	assert.Contains(t, string(data), `hyperhist_points_total{op="fill"} 10`)
}
