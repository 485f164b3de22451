// Package metrics exports the rewrite counters in the Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/false2true/false2true/addon"
)

type Metrics struct {
	inspectedTotal *prometheus.CounterVec
	tokensTotal    prometheus.Counter
	modified       prometheus.GaugeFunc
}

// NewMetrics registers the collectors on reg, or on the default registerer
// when reg is nil. modified reports the live count of modified responses.
func NewMetrics(reg prometheus.Registerer, modified func() int64) *Metrics {
	m := &Metrics{
		inspectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "false2true_responses_inspected_total", Help: "Responses inspected by the rewriter"},
			[]string{"result"},
		),
		tokensTotal: prometheus.NewCounter(
			prometheus.CounterOpts{Name: "false2true_tokens_rewritten_total", Help: "Occurrences of false found in modified responses"},
		),
	}
	if modified != nil {
		m.modified = prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: "false2true_responses_modified", Help: "Responses modified since start"},
			func() float64 { return float64(modified()) },
		)
	}

	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.inspectedTotal, m.tokensTotal)
	if m.modified != nil {
		reg.MustRegister(m.modified)
	}

	// every result is exported from the start, even at zero
	for _, result := range []string{"ineligible", "undecodable", "unchanged", "modified", "streamed"} {
		m.inspectedTotal.WithLabelValues(result)
	}

	return m
}

// Handler serves the metrics gathered by reg, or the default gatherer when
// reg is nil.
func (m *Metrics) Handler(reg *prometheus.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Inspected implements addon.Observer.
func (m *Metrics) Inspected(i addon.Inspection) {
	if m == nil {
		return
	}
	m.inspectedTotal.WithLabelValues(i.Result()).Inc()
	if i.Result() == "modified" {
		m.tokensTotal.Add(float64(i.FalseCount))
	}
}
