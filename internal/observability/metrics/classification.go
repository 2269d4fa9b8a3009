package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/insurance-doc-router/internal/core/domain"
)

// ClassificationMetrics implements ports.ClassificationObserver.
type ClassificationMetrics struct {
	service string

	decisionsTotal     *prometheus.CounterVec
	decisionConfidence *prometheus.HistogramVec
	pipelineDuration   *prometheus.HistogramVec
	visionFallbacks    *prometheus.CounterVec
	routingTotal       *prometheus.CounterVec
	auditFailuresTotal *prometheus.CounterVec
	breakerState       *prometheus.GaugeVec
}

func NewClassificationMetrics(service string, registerer prometheus.Registerer) *ClassificationMetrics {
	decisionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "decisions_total",
			Help:      "Classification decisions by document type and decision source.",
		},
		[]string{"service", "type", "source"},
	)
	decisionConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "decision_confidence",
			Help:      "Confidence of the final decision by decision source.",
			Buckets:   []float64{0, 0.1, 0.3, 0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 1},
		},
		[]string{"service", "source"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "classification",
			Name:      "duration_seconds",
			Help:      "Classify-and-route duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"service"},
	)
	visionFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vision",
			Name:      "fallbacks_total",
			Help:      "Vision calls replaced by the unavailable signal, by reason.",
		},
		[]string{"service", "reason"},
	)
	routingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "routing",
			Name:      "outcomes_total",
			Help:      "Routing outcomes by target store and status.",
		},
		[]string{"service", "store", "status"},
	)
	auditFailuresTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "write_failures_total",
			Help:      "Audit entries that could not be persisted.",
		},
		[]string{"service"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)

	registerer.MustRegister(
		decisionsTotal,
		decisionConfidence,
		pipelineDuration,
		visionFallbacks,
		routingTotal,
		auditFailuresTotal,
		breakerState,
	)

	return &ClassificationMetrics{
		service:            service,
		decisionsTotal:     decisionsTotal,
		decisionConfidence: decisionConfidence,
		pipelineDuration:   pipelineDuration,
		visionFallbacks:    visionFallbacks,
		routingTotal:       routingTotal,
		auditFailuresTotal: auditFailuresTotal,
		breakerState:       breakerState,
	}
}

func (m *ClassificationMetrics) ObserveDecision(decision domain.ClassificationDecision, duration time.Duration) {
	m.decisionsTotal.WithLabelValues(m.service, string(decision.Type), string(decision.Source)).Inc()
	m.decisionConfidence.WithLabelValues(m.service, string(decision.Source)).Observe(decision.Confidence)
	m.pipelineDuration.WithLabelValues(m.service).Observe(duration.Seconds())
}

func (m *ClassificationMetrics) ObserveVisionFallback(reason string) {
	if reason == "" {
		reason = "unknown"
	}
	m.visionFallbacks.WithLabelValues(m.service, reason).Inc()
}

func (m *ClassificationMetrics) ObserveRouting(outcome domain.RoutingOutcome) {
	store := outcome.TargetStore
	if store == "" {
		store = "unroutable"
	}
	status := "success"
	if !outcome.Succeeded() {
		status = "error"
	}
	m.routingTotal.WithLabelValues(m.service, store, status).Inc()
}

func (m *ClassificationMetrics) ObserveAuditFailure() {
	m.auditFailuresTotal.WithLabelValues(m.service).Inc()
}

// ObserveBreakerState matches resilience.Config.OnStateChange.
func (m *ClassificationMetrics) ObserveBreakerState(operation, _ string, to string) {
	value := 0.0
	switch to {
	case "half-open":
		value = 1
	case "open":
		value = 2
	}
	m.breakerState.WithLabelValues(m.service, operation).Set(value)
}
