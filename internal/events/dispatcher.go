package events

import (
	"context"

	"github.com/smallbiznis/sharehold/internal/observability/logger"
	"github.com/smallbiznis/sharehold/internal/observability/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Dispatcher delivers committed outbox events. Delivery failures are logged and
// counted; the outbox row stays unpublished.
type Dispatcher struct {
	db       *gorm.DB
	outbox   *Outbox
	notifier Notifier
	metrics  *metrics.Metrics
	workflow *metrics.WorkflowMetrics
}

func NewDispatcher(db *gorm.DB, outbox *Outbox, notifier Notifier, m *metrics.Metrics, workflow *metrics.WorkflowMetrics) *Dispatcher {
	return &Dispatcher{
		db:       db,
		outbox:   outbox,
		notifier: notifier,
		metrics:  m,
		workflow: workflow,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, evt Event) {
	log := logger.FromContext(ctx).With(
		zap.String("event_type", evt.Type),
		zap.String("correlation_id", evt.CorrelationID),
	)

	if err := d.notifier.Notify(ctx, evt); err != nil {
		d.workflow.IncNotifyFailure()
		log.Warn("tenant event notify failed", zap.Error(err))
		return
	}
	d.metrics.RecordEvent(ctx, evt.Type)

	if _, noop := d.notifier.(noopNotifier); noop {
		return
	}
	if err := d.outbox.MarkPublished(ctx, d.db, evt.ID); err != nil {
		log.Warn("mark tenant event published failed", zap.Error(err))
	}
}
