package deposit

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage names used as the "stage" label.
const (
	stageFetch   = "fetch"
	stageSign    = "sign"
	stageSubmit  = "submit"
	stageConfirm = "confirm"

	outcomeConfirmed = "confirmed"
)

// Metrics holds the Prometheus metrics for the orchestrator.
type Metrics struct {
	stageDuration    *prometheus.HistogramVec
	invocationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the metrics for the orchestrator.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deposit_stage_duration_seconds",
			Help:    "Time taken by a single stage of a deposit invocation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
		invocationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deposit_invocations_total",
			Help: "Total number of deposit invocations, labeled by terminal outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.stageDuration, m.invocationsTotal)
	return m
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) recordOutcome(outcome string) {
	if m == nil {
		return
	}
	m.invocationsTotal.WithLabelValues(outcome).Inc()
}
