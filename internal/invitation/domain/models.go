// Package domain contains persistence models for organization invitations.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// Invitation grants a role in an organization to whoever presents its token.
// Only the sha256 digest of the token is stored.
type Invitation struct {
	ID         snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID `gorm:"not null;index" json:"organization_id"`
	Email      string       `gorm:"type:varchar(320);not null" json:"email"`
	Role       string       `gorm:"type:varchar(32);not null" json:"role"`
	TokenHash  string       `gorm:"type:char(64);not null;uniqueIndex:ux_invitations_token_hash" json:"-"`
	InvitedBy  uuid.UUID    `gorm:"type:varchar(36);not null" json:"invited_by"`
	ExpiresAt  time.Time    `gorm:"not null" json:"expires_at"`
	AcceptedAt *time.Time   `json:"accepted_at"`
	AcceptedBy *uuid.UUID   `gorm:"type:varchar(36)" json:"accepted_by"`
	CreatedAt  time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Invitation) TableName() string { return "invitations" }

func (i Invitation) IsAccepted() bool { return i.AcceptedAt != nil }

// IsExpired reports whether the invitation is no longer usable at now.
func (i Invitation) IsExpired(now time.Time) bool { return !now.Before(i.ExpiresAt) }
