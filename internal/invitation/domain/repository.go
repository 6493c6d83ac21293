package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, invitation Invitation) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*Invitation, error)
	// MarkAccepted only touches a row that has not been accepted yet and
	// returns the number of rows updated.
	MarkAccepted(ctx context.Context, id snowflake.ID, userID uuid.UUID, at time.Time) (int64, error)
}
