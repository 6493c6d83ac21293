package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, subscription *Subscription) error
	InsertEntitlements(ctx context.Context, db *gorm.DB, entitlements []Entitlement) error
	FindLatestByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	LockLatestByOrgID(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	ListEntitlements(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]Entitlement, error)
}
