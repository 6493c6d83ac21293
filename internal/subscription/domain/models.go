// Package domain contains persistence models for subscriptions and section entitlements.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusTrial    SubscriptionStatus = "trial"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

// Subscription captures an organization's plan, trial window and seat allowance.
type Subscription struct {
	ID          snowflake.ID       `gorm:"primaryKey"`
	OrgID       snowflake.ID       `gorm:"not null;index"`
	Status      SubscriptionStatus `gorm:"type:varchar(32);not null"`
	TrialEndsAt *time.Time         `gorm:""`
	SeatLimit   int                `gorm:"not null"`
	CreatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Entitlement grants one section to a subscription.
type Entitlement struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	SubscriptionID snowflake.ID `gorm:"not null;uniqueIndex:ux_entitlements_subscription_section,priority:1"`
	Section        string       `gorm:"type:varchar(64);not null;uniqueIndex:ux_entitlements_subscription_section,priority:2"`
	IsActive       bool         `gorm:"not null;default:true"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Entitlement) TableName() string { return "entitlements" }
