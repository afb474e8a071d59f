package metrics

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeNotFound = "not_found"
	OutcomeRetry    = "retry"
	OutcomeDead     = "dead"
)

// ReconcileMetrics tracks the paid-flag reconciliation between payments and
// service requests, plus latency of every record store call.
type ReconcileMetrics struct {
	defects        *prometheus.CounterVec
	inlineRetries  *prometheus.CounterVec
	outboxAttempts *prometheus.CounterVec
	outboxDead     *prometheus.CounterVec
	outboxBacklog  *prometheus.GaugeVec
	upstream       *prometheus.HistogramVec
	runDuration    prometheus.Observer
	runTimeouts    prometheus.Counter
}

var (
	reconcileMetricsOnce sync.Once
	reconcileMetrics     *ReconcileMetrics
)

// Reconciliation returns the singleton reconciliation metrics registry.
func Reconciliation() *ReconcileMetrics {
	return ReconciliationWithConfig(Config{})
}

func ReconciliationWithConfig(cfg Config) *ReconcileMetrics {
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcileMetrics
}

// ResetReconciliationMetricsForTest swaps the singleton for one bound to a
// private registry so tests can assert on counters in isolation.
func ResetReconciliationMetricsForTest() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	reconcileMetricsOnce = sync.Once{}
	reconcileMetricsOnce.Do(func() {
		reconcileMetrics = newReconcileMetrics(registry, Config{ServiceName: "mutrapro", Environment: "test"})
	})
	return registry
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) *ReconcileMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "mutrapro"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	defects := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mutrapro_reconciliation_defects_total",
		Help:        "Payments whose request paid flag or transaction could not be reconciled inline.",
		ConstLabels: constLabels,
	}, []string{"step"})
	inlineRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mutrapro_reconciliation_inline_retries_total",
		Help:        "Inline retries of reconciliation steps after a payment was created.",
		ConstLabels: constLabels,
	}, []string{"step"})
	outboxAttempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mutrapro_outbox_attempts_total",
		Help:        "Outbox task attempts by kind and outcome.",
		ConstLabels: constLabels,
	}, []string{"kind", "outcome"})
	outboxDead := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "mutrapro_outbox_dead_total",
		Help:        "Outbox tasks that exhausted their attempts and need an operator.",
		ConstLabels: constLabels,
	}, []string{"kind"})
	outboxBacklog := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name:        "mutrapro_outbox_backlog",
		Help:        "Outbox tasks by status observed at the end of the last worker run.",
		ConstLabels: constLabels,
	}, []string{"status"})
	upstream := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "mutrapro_record_store_request_duration_seconds",
		Help:        "Record store call latency by operation and outcome.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		ConstLabels: constLabels,
	}, []string{"op", "outcome"})
	runDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "mutrapro_outbox_run_duration_seconds",
		Help:        "Duration of a single outbox worker pass.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	})
	runTimeouts := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "mutrapro_outbox_run_timeouts_total",
		Help:        "Outbox worker passes that hit their deadline.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		defects,
		inlineRetries,
		outboxAttempts,
		outboxDead,
		outboxBacklog,
		upstream,
		runDuration,
		runTimeouts,
	)

	return &ReconcileMetrics{
		defects:        defects,
		inlineRetries:  inlineRetries,
		outboxAttempts: outboxAttempts,
		outboxDead:     outboxDead,
		outboxBacklog:  outboxBacklog,
		upstream:       upstream,
		runDuration:    runDuration,
		runTimeouts:    runTimeouts,
	}
}

func (m *ReconcileMetrics) IncDefect(step string) {
	if m == nil {
		return
	}
	m.defects.WithLabelValues(step).Inc()
}

func (m *ReconcileMetrics) IncInlineRetry(step string) {
	if m == nil {
		return
	}
	m.inlineRetries.WithLabelValues(step).Inc()
}

func (m *ReconcileMetrics) IncOutboxAttempt(kind, outcome string) {
	if m == nil {
		return
	}
	m.outboxAttempts.WithLabelValues(kind, outcome).Inc()
}

func (m *ReconcileMetrics) IncOutboxDead(kind string) {
	if m == nil {
		return
	}
	m.outboxDead.WithLabelValues(kind).Inc()
}

func (m *ReconcileMetrics) SetOutboxBacklog(status string, count int64) {
	if m == nil {
		return
	}
	m.outboxBacklog.WithLabelValues(status).Set(float64(count))
}

// ObserveUpstream records the latency of one record store call.
func (m *ReconcileMetrics) ObserveUpstream(op, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.upstream.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

func (m *ReconcileMetrics) ObserveRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())
}

func (m *ReconcileMetrics) IncRunTimeout() {
	if m == nil {
		return
	}
	m.runTimeouts.Inc()
}
