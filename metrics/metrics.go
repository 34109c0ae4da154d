// Package metrics exposes Prometheus instruments for the persistence layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the storage instruments. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	results        *prometheus.CounterVec
	persistErrors  *prometheus.CounterVec
	activeBackend  *prometheus.GaugeVec
	legacyUnusable prometheus.Counter
}

// New registers the instruments on reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "storage",
			Name:      "protocol_results_total",
			Help:      "Outcomes of migrate, import and reset runs.",
		}, []string{"operation", "status"}),
		persistErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "storage",
			Name:      "persist_errors_total",
			Help:      "Background cache writes that failed, by backend.",
		}, []string{"backend"}),
		activeBackend: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "atelier",
			Subsystem: "storage",
			Name:      "active_backend",
			Help:      "1 for the backend currently serving reads and writes.",
		}, []string{"backend"}),
		legacyUnusable: f.NewCounter(prometheus.CounterOpts{
			Namespace: "atelier",
			Subsystem: "storage",
			Name:      "legacy_unavailable_total",
			Help:      "Startups where the legacy store could not be read.",
		}),
	}
}

// ObserveResult counts one protocol outcome
func (m *Metrics) ObserveResult(operation, status string) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(operation, status).Inc()
}

// PersistFailed counts a failed background write
func (m *Metrics) PersistFailed(backend string) {
	if m == nil {
		return
	}
	m.persistErrors.WithLabelValues(backend).Inc()
}

// SetActiveBackend flips the gauge so exactly one of the known backends reads 1
func (m *Metrics) SetActiveBackend(active string, all ...string) {
	if m == nil {
		return
	}
	for _, b := range all {
		v := 0.0
		if b == active {
			v = 1
		}
		m.activeBackend.WithLabelValues(b).Set(v)
	}
}

// LegacyUnavailable counts a startup that could not read the legacy store
func (m *Metrics) LegacyUnavailable() {
	if m == nil {
		return
	}
	m.legacyUnusable.Inc()
}
