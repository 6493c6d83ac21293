package migration

import (
	"testing"

	"github.com/smallbiznis/sharehold/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn := db.NewTest(t)
	require.NoError(t, AutoMigrate(conn))
	// Idempotent.
	require.NoError(t, AutoMigrate(conn))

	for _, table := range []string{
		"organizations",
		"organization_members",
		"subscriptions",
		"entitlements",
		"membership_tiers",
		"invitations",
		"tenant_events",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("organization_members", "ux_org_user"))
	assert.True(t, conn.Migrator().HasIndex("invitations", "ux_invitations_token_hash"))
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	src, err := newSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	versions := []uint{first}
	for v := first; ; {
		next, err := src.Next(v)
		if err != nil {
			break
		}
		versions = append(versions, next)
		v = next
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)

	for _, v := range versions {
		up, _, err := src.ReadUp(v)
		require.NoError(t, err)
		require.NoError(t, up.Close())
		down, _, err := src.ReadDown(v)
		require.NoError(t, err)
		require.NoError(t, down.Close())
	}
}
