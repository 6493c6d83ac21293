package provisioning

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/events"
	"github.com/smallbiznis/sharehold/internal/identity"
	"github.com/smallbiznis/sharehold/internal/observability/metrics"
	orgdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	orgrepository "github.com/smallbiznis/sharehold/internal/organization/repository"
	"github.com/smallbiznis/sharehold/internal/provisioning/domain"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	subscriptionrepository "github.com/smallbiznis/sharehold/internal/subscription/repository"
	"github.com/smallbiznis/sharehold/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	svc      domain.Service
	clock    *clock.FakeClock
	registry *prometheus.Registry
	owner    *identity.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := db.NewTest(t)
	require.NoError(t, conn.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&subscriptiondomain.Subscription{},
		&subscriptiondomain.Entitlement{},
		&events.TenantEvent{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC))
	registry := prometheus.NewRegistry()
	workflow := metrics.NewWorkflowMetrics(registry, metrics.Config{})
	outbox := events.NewOutbox(node)

	svc := NewService(Params{
		DB:         conn,
		Config:     config.Config{Tenant: config.TenantConfig{StoreTimeout: 5 * time.Second}},
		OrgRepo:    orgrepository.NewRepository(conn),
		SubRepo:    subscriptionrepository.Provide(),
		Sections:   config.NewStaticSectionCatalogHolder(config.DefaultSectionCatalog()),
		Clock:      clk,
		GenID:      node,
		Outbox:     outbox,
		Dispatcher: events.NewDispatcher(conn, outbox, events.NewNoopNotifier(), nil, workflow),
		Metrics:    workflow,
	})

	return &fixture{
		db:       conn,
		svc:      svc,
		clock:    clk,
		registry: registry,
		owner:    &identity.Identity{UserID: uuid.New(), Email: "founder@example.com"},
	}
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) assertNoRows(t *testing.T) {
	t.Helper()
	assert.Zero(t, f.count(t, &orgdomain.Organization{}))
	assert.Zero(t, f.count(t, &orgdomain.OrganizationMember{}))
	assert.Zero(t, f.count(t, &subscriptiondomain.Subscription{}))
	assert.Zero(t, f.count(t, &subscriptiondomain.Entitlement{}))
}

func TestProvisionCreatesTenant(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Provision(ctx, f.owner, domain.Request{
		OrganizationName: "  Skyline Aviation  ",
		Sections:         []string{"bookings", " Calendar ", "BOOKINGS", "maintenance"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"bookings", "calendar", "maintenance"}, res.Sections)
	assert.Equal(t, f.clock.Now().Add(14*24*time.Hour), res.TrialEndsAt)

	orgID, err := snowflake.ParseString(res.OrganizationID)
	require.NoError(t, err)

	var org orgdomain.Organization
	require.NoError(t, f.db.First(&org, "id = ?", orgID).Error)
	assert.Equal(t, "Skyline Aviation", org.LegalName)
	require.NotNil(t, org.CommercialName)
	assert.Equal(t, "Skyline Aviation", *org.CommercialName)
	assert.Equal(t, "skyline-aviation", org.Slug)

	var members []orgdomain.OrganizationMember
	require.NoError(t, f.db.Where("org_id = ?", orgID).Find(&members).Error)
	require.Len(t, members, 1)
	assert.Equal(t, f.owner.UserID, members[0].UserID)
	assert.Equal(t, orgdomain.RoleOwner, members[0].Role)

	var subs []subscriptiondomain.Subscription
	require.NoError(t, f.db.Where("org_id = ?", orgID).Find(&subs).Error)
	require.Len(t, subs, 1)
	assert.Equal(t, res.SubscriptionID, subs[0].ID.String())
	assert.Equal(t, subscriptiondomain.SubscriptionStatusTrial, subs[0].Status)
	assert.Equal(t, domain.DefaultSeatLimit, subs[0].SeatLimit)
	require.NotNil(t, subs[0].TrialEndsAt)
	assert.WithinDuration(t, f.clock.Now().Add(domain.TrialPeriod), *subs[0].TrialEndsAt, time.Second)

	var entitlements []subscriptiondomain.Entitlement
	require.NoError(t, f.db.Order("section").Find(&entitlements).Error)
	require.Len(t, entitlements, 3)
	for _, e := range entitlements {
		assert.Equal(t, subs[0].ID, e.SubscriptionID)
		assert.True(t, e.IsActive)
	}

	var evts []events.TenantEvent
	require.NoError(t, f.db.Find(&evts).Error)
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeTenantProvisioned, evts[0].EventType)
	assert.Equal(t, orgID, evts[0].OrgID)
	assert.False(t, evts[0].Published)

	series, err := testutil.GatherAndCount(f.registry, "sharehold_provisioning_total")
	require.NoError(t, err)
	assert.Equal(t, 1, series)
}

func TestProvisionValidation(t *testing.T) {
	cases := []struct {
		name    string
		owner   *identity.Identity
		req     domain.Request
		wantErr error
	}{
		{
			name:    "empty name",
			req:     domain.Request{OrganizationName: "", Sections: []string{"bookings"}},
			wantErr: domain.ErrInvalidOrganizationName,
		},
		{
			name:    "blank name",
			req:     domain.Request{OrganizationName: "   ", Sections: []string{"bookings"}},
			wantErr: domain.ErrInvalidOrganizationName,
		},
		{
			name:    "no sections",
			req:     domain.Request{OrganizationName: "X"},
			wantErr: domain.ErrInvalidSections,
		},
		{
			name:    "blank sections",
			req:     domain.Request{OrganizationName: "X", Sections: []string{" ", ""}},
			wantErr: domain.ErrInvalidSections,
		},
		{
			name:    "unknown section",
			req:     domain.Request{OrganizationName: "X", Sections: []string{"bookings", "hangar"}},
			wantErr: domain.ErrUnknownSection,
		},
		{
			name:    "missing owner",
			owner:   &identity.Identity{},
			req:     domain.Request{OrganizationName: "X", Sections: []string{"bookings"}},
			wantErr: domain.ErrInvalidOwner,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			owner := tc.owner
			if owner == nil {
				owner = f.owner
			}
			_, err := f.svc.Provision(context.Background(), owner, tc.req)
			assert.ErrorIs(t, err, tc.wantErr)
			f.assertNoRows(t)
		})
	}
}

func TestProvisionRollsBackOnStoreFailure(t *testing.T) {
	cases := []struct {
		name     string
		dropStmt string
		step     string
	}{
		{name: "organization", dropStmt: `DROP TABLE organizations`, step: domain.StepOrganization},
		{name: "membership", dropStmt: `DROP TABLE organization_members`, step: domain.StepMembership},
		{name: "subscription", dropStmt: `DROP TABLE subscriptions`, step: domain.StepSubscription},
		{name: "entitlements", dropStmt: `DROP TABLE entitlements`, step: domain.StepEntitlements},
		{name: "outbox", dropStmt: `DROP TABLE tenant_events`, step: domain.StepOutbox},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, f.db.Exec(tc.dropStmt).Error)

			_, err := f.svc.Provision(context.Background(), f.owner, domain.Request{
				OrganizationName: "Doomed",
				Sections:         []string{"bookings"},
			})
			require.Error(t, err)

			var storeErr *domain.StoreError
			require.ErrorAs(t, err, &storeErr)
			assert.Equal(t, tc.step, storeErr.Step)

			for _, model := range []any{
				&orgdomain.Organization{},
				&orgdomain.OrganizationMember{},
				&subscriptiondomain.Subscription{},
				&subscriptiondomain.Entitlement{},
			} {
				if f.db.Migrator().HasTable(model) {
					assert.Zero(t, f.count(t, model), "%T", model)
				}
			}
			series, err := testutil.GatherAndCount(f.registry, "sharehold_provisioning_failures_total")
			require.NoError(t, err)
			assert.Equal(t, 1, series)
		})
	}
}
