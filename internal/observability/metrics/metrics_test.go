package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("route", "/api/onboarding"),
		attribute.String("email", "owner@example.com"),
		attribute.String("reason", "rate_limited"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "email" {
			t.Fatalf("expected email to be dropped")
		}
	}
}

func TestClassifyStoreReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("insert: %w", context.DeadlineExceeded), want: StoreReasonDeadlineExceeded},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: StoreReasonUniqueViolation},
		{name: "foreign_key", err: &pgconn.PgError{Code: "23503"}, want: StoreReasonForeignKeyViolation},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: StoreReasonSerializationFailure},
		{name: "unknown", err: errors.New("boom"), want: StoreReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyStoreReason(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestWorkflowMetricsCounts(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewWorkflowMetrics(registry, Config{ServiceName: "sharehold", Environment: "test"})

	m.ObserveProvisioning(OutcomeSuccess, 20*time.Millisecond)
	m.ObserveProvisioning(OutcomeStoreError, time.Millisecond)
	m.IncProvisioningFailure("subscription", &pgconn.PgError{Code: "23505"})
	m.IncInvitationVerify(OutcomeExpired)
	m.IncInvitationVerify(OutcomeExpired)
	m.IncNotifyFailure()

	if got := testutil.ToFloat64(m.provisioningRuns.WithLabelValues(OutcomeSuccess)); got != 1 {
		t.Fatalf("expected 1 successful provisioning, got %v", got)
	}
	if got := testutil.ToFloat64(m.provisioningFailures.WithLabelValues("subscription", StoreReasonUniqueViolation)); got != 1 {
		t.Fatalf("expected 1 subscription failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.invitationVerify.WithLabelValues(OutcomeExpired)); got != 2 {
		t.Fatalf("expected 2 expired verifications, got %v", got)
	}
	if got := testutil.ToFloat64(m.notifyFailures); got != 1 {
		t.Fatalf("expected 1 notify failure, got %v", got)
	}
}

func TestWorkflowMetricsNilSafe(t *testing.T) {
	var m *WorkflowMetrics
	m.ObserveProvisioning(OutcomeSuccess, time.Second)
	m.IncProvisioningFailure("organization", errors.New("boom"))
	m.IncInvitationVerify(OutcomeNotFound)
	m.IncInvitationAccept(OutcomeSuccess)
	m.IncNotifyFailure()
}
