// Package metrics exposes gate decisions and dependency failures to
// Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ignite/leadgate/internal/lead"
)

// Metrics holds the collectors on a private registry. It implements
// intake.Observer and the blacklist refresher's counter.
type Metrics struct {
	registry *prometheus.Registry

	decisions      *prometheus.CounterVec
	latency        prometheus.Histogram
	dependencyErrs *prometheus.CounterVec
	blacklisted    prometheus.Counter
}

// New registers every collector plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgate_decisions_total",
			Help: "Lead decisions by result and rejection reason",
		}, []string{"result", "reason"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "leadgate_decision_seconds",
			Help:    "Time spent deciding one lead",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		dependencyErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "leadgate_dependency_errors_total",
			Help: "Dependency calls that failed and were resolved by policy",
		}, []string{"dependency"}),
		blacklisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "leadgate_blacklist_added_total",
			Help: "Placements added to the blacklist automatically",
		}),
	}
	m.registry.MustRegister(
		m.decisions,
		m.latency,
		m.dependencyErrs,
		m.blacklisted,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Decision counts one outcome.
func (m *Metrics) Decision(out lead.Outcome) {
	result, reason := "accepted", "none"
	if !out.Accepted {
		result = "rejected"
		if out.Reason != nil {
			// one series per code, not per qc value
			reason = string(out.Reason.Code)
		}
	}
	m.decisions.WithLabelValues(result, reason).Inc()
	m.latency.Observe(out.Elapsed.Seconds())
}

// DependencyFailed counts a failed dependency call.
func (m *Metrics) DependencyFailed(dep string) {
	m.dependencyErrs.WithLabelValues(dep).Inc()
}

// BlacklistAdded counts an automatic blacklist entry.
func (m *Metrics) BlacklistAdded() {
	m.blacklisted.Inc()
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
