// Package metrics exposes controller counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sweeney/crowd-signal/internal/logic"
)

// Metrics holds the controller's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	Cycles        prometheus.Counter
	Transitions   *prometheus.CounterVec
	LogFailures   prometheus.Counter
	CrowdCount    prometheus.Gauge
	GreenDuration prometheus.Gauge
	Bands         *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowd_signal_cycles_total",
			Help: "Total number of control cycles completed",
		}),
		Transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowd_signal_transitions_total",
				Help: "Total number of logged status transitions",
			},
			[]string{"from", "to"},
		),
		LogFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crowd_signal_log_failures_total",
			Help: "Transitions that could not be written to the audit log",
		}),
		CrowdCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowd_signal_crowd_count",
			Help: "People counted in the most recent frame",
		}),
		GreenDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crowd_signal_green_duration_seconds",
			Help: "Green phase duration chosen in the most recent cycle",
		}),
		Bands: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crowd_signal_band_cycles_total",
				Help: "Control cycles per density band",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.Cycles, m.Transitions, m.LogFailures, m.CrowdCount, m.GreenDuration, m.Bands)
	return m
}

// ObserveCycle records one classified observation.
func (m *Metrics) ObserveCycle(obs logic.Observation, d logic.Decision) {
	if m == nil {
		return
	}
	m.Cycles.Inc()
	m.CrowdCount.Set(float64(obs.Count))
	m.GreenDuration.Set(float64(d.GreenDuration))
	m.Bands.WithLabelValues(string(d.Status)).Inc()
}

// ObserveTransition records one logged transition.
func (m *Metrics) ObserveTransition(from, to logic.Status) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(string(from), string(to)).Inc()
}

// ObserveLogFailure records one failed audit append.
func (m *Metrics) ObserveLogFailure() {
	if m == nil {
		return
	}
	m.LogFailures.Inc()
}
