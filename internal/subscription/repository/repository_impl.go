package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, subscription *subscriptiondomain.Subscription) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO subscriptions (id, org_id, status, trial_ends_at, seat_limit, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		subscription.ID,
		subscription.OrgID,
		subscription.Status,
		subscription.TrialEndsAt,
		subscription.SeatLimit,
		subscription.CreatedAt,
		subscription.UpdatedAt,
	).Error
}

// InsertEntitlements writes all rows in a single multi-row statement.
func (r *repo) InsertEntitlements(ctx context.Context, db *gorm.DB, entitlements []subscriptiondomain.Entitlement) error {
	if len(entitlements) == 0 {
		return nil
	}
	return db.WithContext(ctx).Create(&entitlements).Error
}

func (r *repo) FindLatestByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, status, trial_ends_at, seat_limit, created_at, updated_at
		 FROM subscriptions
		 WHERE org_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		orgID,
	).Scan(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

// LockLatestByOrgID reads the newest subscription with FOR UPDATE so seat checks
// against it serialize per organization. SQLite drops the locking clause.
func (r *repo) LockLatestByOrgID(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*subscriptiondomain.Subscription, error) {
	var subscription subscriptiondomain.Subscription
	err := lockedLatestByOrgQuery(tx.WithContext(ctx), orgID).Find(&subscription).Error
	if err != nil {
		return nil, err
	}
	if subscription.ID == 0 {
		return nil, nil
	}
	return &subscription, nil
}

func lockedLatestByOrgQuery(db *gorm.DB, orgID snowflake.ID) *gorm.DB {
	return db.Model(&subscriptiondomain.Subscription{}).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("org_id = ?", orgID).
		Order("created_at DESC, id DESC").
		Limit(1)
}

func (r *repo) ListEntitlements(ctx context.Context, db *gorm.DB, subscriptionID snowflake.ID) ([]subscriptiondomain.Entitlement, error) {
	var items []subscriptiondomain.Entitlement
	err := db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("section asc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
