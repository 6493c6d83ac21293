package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, tier *MembershipTier) error
	ListByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]MembershipTier, error)
}
