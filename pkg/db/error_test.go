package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("constraint failed: UNIQUE constraint failed: organizations.slug (2067)")))
	assert.True(t, IsDuplicateKeyErr(errors.New("Error 1062 (23000): Duplicate entry")))
	assert.False(t, IsDuplicateKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsForeignKeyErr(t *testing.T) {
	assert.True(t, IsForeignKeyErr(gorm.ErrForeignKeyViolated))
	assert.True(t, IsForeignKeyErr(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsForeignKeyErr(errors.New("boom")))
}

type sample struct {
	ID   int64  `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestNewTestIsolatedAndTranslatesDuplicates(t *testing.T) {
	conn := NewTest(t)
	if err := conn.AutoMigrate(&sample{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := conn.Create(&sample{ID: 1, Code: "a"}).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err := conn.Create(&sample{ID: 2, Code: "a"}).Error
	assert.True(t, IsDuplicateKeyErr(err))
}
