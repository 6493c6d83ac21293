// Package events records tenant lifecycle events in a transactional outbox and
// broadcasts them once the surrounding transaction has committed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeTenantProvisioned  = "tenant.provisioned"
	TypeInvitationCreated  = "invitation.created"
	TypeInvitationAccepted = "invitation.accepted"
)

// Event is one tenant lifecycle fact.
type Event struct {
	ID            snowflake.ID   `json:"id"`
	OrgID         snowflake.ID   `json:"organizationId"`
	Type          string         `json:"type"`
	CorrelationID string         `json:"correlationId"`
	Payload       map[string]any `json:"payload"`
	OccurredAt    time.Time      `json:"occurredAt"`
}

// TenantEvent is the outbox row.
type TenantEvent struct {
	ID            snowflake.ID   `gorm:"primaryKey"`
	OrgID         snowflake.ID   `gorm:"not null;index"`
	EventType     string         `gorm:"type:varchar(64);not null"`
	CorrelationID string         `gorm:"type:varchar(26);not null"`
	Payload       datatypes.JSON `gorm:"not null"`
	Published     bool           `gorm:"not null;default:false;index"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (TenantEvent) TableName() string { return "tenant_events" }

// Outbox appends events inside the caller's transaction.
type Outbox struct {
	genID *snowflake.Node
}

func NewOutbox(genID *snowflake.Node) *Outbox {
	return &Outbox{genID: genID}
}

// New builds an event with a fresh ID and ULID correlation ID.
func (o *Outbox) New(orgID snowflake.ID, eventType string, payload map[string]any, at time.Time) Event {
	return Event{
		ID:            o.genID.Generate(),
		OrgID:         orgID,
		Type:          eventType,
		CorrelationID: ulid.Make().String(),
		Payload:       payload,
		OccurredAt:    at,
	}
}

// Append writes evt through tx; it commits or rolls back with the caller.
func (o *Outbox) Append(ctx context.Context, tx *gorm.DB, evt Event) error {
	data, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evt.Type, err)
	}

	return tx.WithContext(ctx).Exec(
		`INSERT INTO tenant_events (id, org_id, event_type, correlation_id, payload, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		evt.ID,
		evt.OrgID,
		evt.Type,
		evt.CorrelationID,
		datatypes.JSON(data),
		false,
		evt.OccurredAt,
	).Error
}

func (o *Outbox) MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(
		`UPDATE tenant_events SET published = ? WHERE id = ?`,
		true,
		id,
	).Error
}
