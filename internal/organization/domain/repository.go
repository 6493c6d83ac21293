package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID             snowflake.ID
	LegalName      string
	CommercialName *string
	Role           string
	CreatedAt      time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	UpdateOrganization(ctx context.Context, org Organization) error
	AddMember(ctx context.Context, member OrganizationMember) error
	FindMember(ctx context.Context, orgID snowflake.ID, userID uuid.UUID) (*OrganizationMember, error)
	CountMembers(ctx context.Context, orgID snowflake.ID) (int64, error)
	ListMembers(ctx context.Context, orgID snowflake.ID, afterID snowflake.ID, limit int) ([]*OrganizationMember, error)
	ListOrganizationsByUser(ctx context.Context, userID uuid.UUID) ([]OrganizationListItem, error)
}
