package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/false2true/false2true/addon"
	"github.com/false2true/false2true/rewrite"
)

func TestMetricsInspected(t *testing.T) {
	c := qt.New(t)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, nil)

	m.Inspected(addon.Inspection{Status: rewrite.StatusModified, FalseCount: 3})
	m.Inspected(addon.Inspection{Status: rewrite.StatusModified, FalseCount: 2})
	m.Inspected(addon.Inspection{Status: rewrite.StatusUnchanged})
	m.Inspected(addon.Inspection{Streamed: true})

	c.Assert(testutil.ToFloat64(m.inspectedTotal.WithLabelValues("modified")), qt.Equals, 2.0)
	c.Assert(testutil.ToFloat64(m.inspectedTotal.WithLabelValues("unchanged")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.inspectedTotal.WithLabelValues("streamed")), qt.Equals, 1.0)
	c.Assert(testutil.ToFloat64(m.inspectedTotal.WithLabelValues("ineligible")), qt.Equals, 0.0)
	c.Assert(testutil.ToFloat64(m.tokensTotal), qt.Equals, 5.0)
}

func TestMetricsExportsEveryResult(t *testing.T) {
	c := qt.New(t)

	reg := prometheus.NewRegistry()
	NewMetrics(reg, nil)

	c.Assert(testutil.CollectAndCount(reg, "false2true_responses_inspected_total"), qt.Equals, 5)
}

func TestMetricsHandler(t *testing.T) {
	c := qt.New(t)

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, func() int64 { return 7 })
	m.Inspected(addon.Inspection{Status: rewrite.StatusModified, FalseCount: 1})

	rec := httptest.NewRecorder()
	m.Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	c.Assert(body, qt.Contains, `false2true_responses_inspected_total{result="modified"} 1`)
	c.Assert(body, qt.Contains, "false2true_responses_modified 7")
	c.Assert(strings.Contains(body, "false2true_tokens_rewritten_total 1"), qt.IsTrue)
}

func TestNilMetricsIgnoresInspections(t *testing.T) {
	var m *Metrics
	m.Inspected(addon.Inspection{Status: rewrite.StatusModified})
}
