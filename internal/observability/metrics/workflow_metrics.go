package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess     = "success"
	OutcomeValidation  = "validation_error"
	OutcomeNotFound    = "not_found"
	OutcomeAlreadyUsed = "already_used"
	OutcomeExpired     = "expired"
	OutcomeForbidden   = "forbidden"
	OutcomeConflict    = "conflict"
	OutcomeStoreError  = "store_error"
)

const (
	StoreReasonDeadlineExceeded     = "deadline_exceeded"
	StoreReasonUniqueViolation      = "unique_violation"
	StoreReasonForeignKeyViolation  = "foreign_key_violation"
	StoreReasonSerializationFailure = "serialization_failure"
	StoreReasonUnknown              = "unknown"
)

// WorkflowMetrics captures tenant workflow outcomes on the Prometheus registry.
type WorkflowMetrics struct {
	provisioningRuns     *prometheus.CounterVec
	provisioningFailures *prometheus.CounterVec
	provisioningDuration prometheus.Observer
	invitationVerify     *prometheus.CounterVec
	invitationAccept     *prometheus.CounterVec
	notifyFailures       prometheus.Counter
}

var (
	workflowMetricsOnce sync.Once
	workflowMetrics     *WorkflowMetrics
)

// Workflow returns the singleton workflow metrics registry.
func Workflow() *WorkflowMetrics {
	return WorkflowWithConfig(Config{})
}

// WorkflowWithConfig returns the singleton workflow metrics registry using config labels.
func WorkflowWithConfig(cfg Config) *WorkflowMetrics {
	workflowMetricsOnce.Do(func() {
		workflowMetrics = newWorkflowMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workflowMetrics
}

// NewWorkflowMetrics registers a fresh set of collectors on registerer.
func NewWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	return newWorkflowMetrics(registerer, cfg)
}

func newWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName(cfg),
		"env":     environment,
	}

	provisioningRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sharehold_provisioning_total",
		Help:        "Organization provisioning attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	provisioningFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sharehold_provisioning_failures_total",
		Help:        "Provisioning store failures by step and low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"step", "reason"})
	provisioningDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "sharehold_provisioning_duration_seconds",
		Help:        "Provisioning latency including the store transaction.",
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		ConstLabels: constLabels,
	})
	invitationVerify := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sharehold_invitation_verify_total",
		Help:        "Invitation verifications by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	invitationAccept := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "sharehold_invitation_accept_total",
		Help:        "Invitation acceptances by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	notifyFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "sharehold_event_notify_failures_total",
		Help:        "Post-commit event notifications that could not be delivered.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		provisioningRuns,
		provisioningFailures,
		provisioningDuration,
		invitationVerify,
		invitationAccept,
		notifyFailures,
	)

	return &WorkflowMetrics{
		provisioningRuns:     provisioningRuns,
		provisioningFailures: provisioningFailures,
		provisioningDuration: provisioningDuration,
		invitationVerify:     invitationVerify,
		invitationAccept:     invitationAccept,
		notifyFailures:       notifyFailures,
	}
}

// ObserveProvisioning records one provisioning attempt.
func (m *WorkflowMetrics) ObserveProvisioning(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.provisioningRuns.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	m.provisioningDuration.Observe(duration.Seconds())
}

// IncProvisioningFailure records a store failure at the given step.
func (m *WorkflowMetrics) IncProvisioningFailure(step string, err error) {
	if m == nil || err == nil {
		return
	}
	m.provisioningFailures.WithLabelValues(step, ClassifyStoreReason(err)).Inc()
}

func (m *WorkflowMetrics) IncInvitationVerify(outcome string) {
	if m == nil {
		return
	}
	m.invitationVerify.WithLabelValues(outcome).Inc()
}

func (m *WorkflowMetrics) IncInvitationAccept(outcome string) {
	if m == nil {
		return
	}
	m.invitationAccept.WithLabelValues(outcome).Inc()
}

func (m *WorkflowMetrics) IncNotifyFailure() {
	if m == nil {
		return
	}
	m.notifyFailures.Inc()
}

// ClassifyStoreReason maps store errors onto a fixed label set.
func ClassifyStoreReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return StoreReasonDeadlineExceeded
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return StoreReasonUniqueViolation
		case pgerrcode.ForeignKeyViolation:
			return StoreReasonForeignKeyViolation
		case pgerrcode.SerializationFailure:
			return StoreReasonSerializationFailure
		}
	}
	return StoreReasonUnknown
}
