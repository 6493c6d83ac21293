package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// MembershipTier is an ownership share class inside an organization.
type MembershipTier struct {
	ID                  snowflake.ID `gorm:"primaryKey"`
	OrgID               snowflake.ID `gorm:"not null;index"`
	Name                string       `gorm:"type:varchar(255);not null"`
	Description         *string      `gorm:"type:text"`
	BookingDaysPerMonth int          `gorm:"not null;default:0"`
	Position            int          `gorm:"not null;default:0"`
	CreatedAt           time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MembershipTier) TableName() string { return "membership_tiers" }
