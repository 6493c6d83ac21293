package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/sharehold/internal/invitation/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, inv domain.Invitation) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO invitations (id, org_id, email, role, token_hash, invited_by, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.OrgID,
		inv.Email,
		inv.Role,
		inv.TokenHash,
		inv.InvitedBy,
		inv.ExpiresAt,
		inv.CreatedAt,
	).Error
}

func (r *repository) FindByTokenHash(ctx context.Context, tokenHash string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", tokenHash).
		Limit(1).
		Find(&inv).Error
	if err != nil {
		return nil, err
	}
	if inv.ID == 0 {
		return nil, nil
	}
	return &inv, nil
}

func (r *repository) MarkAccepted(ctx context.Context, id snowflake.ID, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(
		`UPDATE invitations SET accepted_at = ?, accepted_by = ?
		 WHERE id = ? AND accepted_at IS NULL`,
		at,
		userID,
		id,
	)
	return res.RowsAffected, res.Error
}
