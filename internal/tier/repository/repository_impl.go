package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/tier/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, tier *domain.MembershipTier) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO membership_tiers (id, org_id, name, description, booking_days_per_month, position, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tier.ID,
		tier.OrgID,
		tier.Name,
		tier.Description,
		tier.BookingDaysPerMonth,
		tier.Position,
		tier.CreatedAt,
	).Error
}

func (r *repo) ListByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) ([]domain.MembershipTier, error) {
	var tiers []domain.MembershipTier
	err := db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("position asc, id asc").
		Find(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}
