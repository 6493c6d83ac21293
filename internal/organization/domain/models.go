// Package domain contains persistence models for the organization service.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

// PlaceholderDisplayName is shown when an organization has no usable name.
const PlaceholderDisplayName = "Organization"

// Organization represents a tenant.
type Organization struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	LegalName      string       `gorm:"column:legal_name;type:text;not null" json:"legal_name"`
	CommercialName *string      `gorm:"column:commercial_name;type:text" json:"commercial_name"`
	Slug           string       `gorm:"type:varchar(255);not null;index:ix_organizations_slug" json:"slug"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// DisplayName prefers the commercial name, then the legal name, then a placeholder.
// Blank names count as absent.
func DisplayName(org *Organization) string {
	if org == nil {
		return PlaceholderDisplayName
	}
	if org.CommercialName != nil {
		if name := strings.TrimSpace(*org.CommercialName); name != "" {
			return name
		}
	}
	if name := strings.TrimSpace(org.LegalName); name != "" {
		return name
	}
	return PlaceholderDisplayName
}

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    uuid.UUID    `gorm:"type:varchar(36);not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:varchar(32);not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
