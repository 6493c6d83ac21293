package service

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/tier/domain"
	"github.com/smallbiznis/sharehold/internal/tier/repository"
	"github.com/smallbiznis/sharehold/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOrdersByPosition(t *testing.T) {
	conn := db.NewTest(t)
	require.NoError(t, conn.AutoMigrate(&domain.MembershipTier{}))
	repo := repository.Provide()
	svc := NewService(conn, repo)
	ctx := context.Background()

	orgID := snowflake.ID(100)
	desc := "Quarter share"
	require.NoError(t, repo.Insert(ctx, conn, &domain.MembershipTier{ID: 1, OrgID: orgID, Name: "Full", BookingDaysPerMonth: 8, Position: 2}))
	require.NoError(t, repo.Insert(ctx, conn, &domain.MembershipTier{ID: 2, OrgID: orgID, Name: "Quarter", Description: &desc, BookingDaysPerMonth: 2, Position: 1}))
	require.NoError(t, repo.Insert(ctx, conn, &domain.MembershipTier{ID: 3, OrgID: 200, Name: "Elsewhere"}))

	tiers, err := svc.List(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, tiers, 2)
	assert.Equal(t, "Quarter", tiers[0].Name)
	assert.Equal(t, &desc, tiers[0].Description)
	assert.Equal(t, 8, tiers[1].BookingDaysPerMonth)

	_, err = svc.List(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidOrganization)
}
