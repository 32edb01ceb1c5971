package observability

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aretw0/stepwise/pkg/domain"
)

const namespace = "stepwise"

// Metrics holds the Prometheus collectors fed by chain lifecycle events.
type Metrics struct {
	Steps           *prometheus.CounterVec
	AttemptFailures *prometheus.CounterVec
	Chains          *prometheus.CounterVec
	ChainDuration   prometheus.Histogram
	Active          prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Accepted reasoning steps by record kind.",
		}, []string{"kind"}),
		AttemptFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attempt_failures_total",
			Help:      "Failed transport attempts by request type (step or final).",
		}, []string{"request"}),
		Chains: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chains_total",
			Help:      "Finished chains by terminal status.",
		}, []string{"status"}),
		ChainDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chain_duration_seconds",
			Help:      "Accumulated thinking time of finished chains.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		Active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "chains_active",
			Help:      "Chains currently running.",
		}),
	}

	for _, c := range []prometheus.Collector{m.Steps, m.AttemptFailures, m.Chains, m.ChainDuration, m.Active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks that update the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnChainStart: func(ctx context.Context, e *domain.ChainEvent) {
			m.Active.Inc()
		},
		OnStepAccepted: func(ctx context.Context, e *domain.StepEvent) {
			m.Steps.WithLabelValues(e.Kind.String()).Inc()
		},
		OnAttemptFailed: func(ctx context.Context, e *domain.AttemptEvent) {
			m.AttemptFailures.WithLabelValues(requestLabel(e.FinalAnswer)).Inc()
		},
		OnChainEnd: func(ctx context.Context, e *domain.ChainEvent) {
			m.Active.Dec()
			m.Chains.WithLabelValues(string(e.Status)).Inc()
			m.ChainDuration.Observe(e.Elapsed.Seconds())
		},
	}
}

func requestLabel(final bool) string {
	if final {
		return "final"
	}
	return "step"
}

// stepLabel formats a step number for log attributes.
func stepLabel(n int) string {
	return strconv.Itoa(n)
}
