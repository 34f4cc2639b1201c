package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusCollectorCounters(t *testing.T) {
	c := NewPrometheusCollector("docfusion")

	c.IncCounter("queries_total", "status", "ok")
	c.IncCounter("queries_total", "status", "ok")
	c.IncCounter("queries_total", "status", "error")
	c.SetGauge("pool_in_use", 3)
	c.ObserveHistogram("query_duration_seconds", 0.25)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `docfusion_queries_total{status="ok"} 2`)
	assert.Contains(t, body, `docfusion_queries_total{status="error"} 1`)
	assert.Contains(t, body, `docfusion_pool_in_use 3`)
	assert.Contains(t, body, "docfusion_query_duration_seconds_count 1")
}

func TestTimerRecordsHistogram(t *testing.T) {
	c := NewPrometheusCollector("docfusion")

	timer := c.StartTimer("op_duration_seconds", "op", "create")
	time.Sleep(time.Millisecond)
	elapsed := timer.Stop()
	require.Greater(t, elapsed, time.Duration(0))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.True(t, strings.Contains(rec.Body.String(), `docfusion_op_duration_seconds_count{op="create"} 1`))
}

func TestNoOpCollector(t *testing.T) {
	c := NewNoOpCollector()
	c.IncCounter("x")
	c.SetGauge("y", 1)
	c.ObserveHistogram("z", 2)
	assert.GreaterOrEqual(t, c.StartTimer("w").Stop(), time.Duration(0))
}
