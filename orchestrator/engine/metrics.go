package engine

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	calls     *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	completed *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectra",
				Name:      "saga_calls_total",
				Help:      "Total number of saga calls by outcome",
			},
			[]string{"workflow", "call", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "spectra",
				Name:      "saga_call_duration_seconds",
				Help:      "Duration of saga calls including persistence",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"workflow", "call"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "spectra",
				Name:      "saga_completed_total",
				Help:      "Total number of sagas that reached their terminal state",
			},
			[]string{"workflow"},
		),
	}
	m.calls = register(reg, m.calls)
	m.duration = register(reg, m.duration)
	m.completed = register(reg, m.completed)
	return m
}

// register returns the collector already registered under the same name, so more
// than one engine can share a registry
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		log.Warn().Err(err).Msg("Failed to register engine metric")
	}
	return c
}
