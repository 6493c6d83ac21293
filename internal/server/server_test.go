package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/smallbiznis/sharehold/internal/authorization"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/events"
	"github.com/smallbiznis/sharehold/internal/identity"
	"github.com/smallbiznis/sharehold/internal/identity/mocks"
	invitationrepository "github.com/smallbiznis/sharehold/internal/invitation/repository"
	invitationservice "github.com/smallbiznis/sharehold/internal/invitation/service"
	"github.com/smallbiznis/sharehold/internal/migration"
	"github.com/smallbiznis/sharehold/internal/observability"
	obsmetrics "github.com/smallbiznis/sharehold/internal/observability/metrics"
	orgrepository "github.com/smallbiznis/sharehold/internal/organization/repository"
	orgservice "github.com/smallbiznis/sharehold/internal/organization/service"
	"github.com/smallbiznis/sharehold/internal/provisioning"
	"github.com/smallbiznis/sharehold/internal/ratelimit"
	subscriptionrepository "github.com/smallbiznis/sharehold/internal/subscription/repository"
	subscriptionservice "github.com/smallbiznis/sharehold/internal/subscription/service"
	tierrepository "github.com/smallbiznis/sharehold/internal/tier/repository"
	tierservice "github.com/smallbiznis/sharehold/internal/tier/service"
	"github.com/smallbiznis/sharehold/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	engine *gin.Engine
	clock  *clock.FakeClock
	users  map[string]*identity.Identity
}

type serverOption func(*config.Config)

func withTrustedProxies(proxies ...string) serverOption {
	return func(cfg *config.Config) {
		cfg.TrustedProxies = proxies
	}
}

func withVerifyLimit(rate float64, burst int) serverOption {
	return func(cfg *config.Config) {
		cfg.RateLimit.InvitationVerifyRate = rate
		cfg.RateLimit.InvitationVerifyBurst = burst
	}
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	cfg := config.Config{
		Environment: "test",
		Tenant: config.TenantConfig{
			StoreTimeout:  5 * time.Second,
			InvitationTTL: 72 * time.Hour,
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	conn := db.NewTest(t)
	require.NoError(t, migration.AutoMigrate(conn))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC))

	workflow := obsmetrics.NewWorkflowMetrics(prometheus.NewRegistry(), obsmetrics.Config{})
	outbox := events.NewOutbox(node)
	dispatcher := events.NewDispatcher(conn, outbox, events.NewNoopNotifier(), nil, workflow)
	sections := config.NewStaticSectionCatalogHolder(config.DefaultSectionCatalog())

	orgRepo := orgrepository.NewRepository(conn)
	subRepo := subscriptionrepository.Provide()

	enforcer, err := authorization.NewMemoryEnforcer()
	require.NoError(t, err)
	authzSvc := authorization.NewService(authorization.Params{
		Log:      zaptest.NewLogger(t),
		Enforcer: enforcer,
		OrgRepo:  orgRepo,
	})

	provisioningSvc := provisioning.NewService(provisioning.Params{
		DB:         conn,
		Config:     cfg,
		OrgRepo:    orgRepo,
		SubRepo:    subRepo,
		Sections:   sections,
		Clock:      clk,
		GenID:      node,
		Outbox:     outbox,
		Dispatcher: dispatcher,
		Metrics:    workflow,
	})
	invitationSvc := invitationservice.NewService(invitationservice.Params{
		DB:         conn,
		Config:     cfg,
		Repo:       invitationrepository.NewRepository(conn),
		OrgRepo:    orgRepo,
		SubRepo:    subRepo,
		Clock:      clk,
		GenID:      node,
		Outbox:     outbox,
		Dispatcher: dispatcher,
		Metrics:    workflow,
	})

	var limiter *ratelimit.InvitationVerifyLimiter
	if cfg.RateLimit.InvitationVerifyRate > 0 {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		limiter = ratelimit.NewInvitationVerifyLimiterWithClient(client, cfg.RateLimit.InvitationVerifyRate, cfg.RateLimit.InvitationVerifyBurst)
	}

	ts := &testServer{
		clock: clk,
		users: map[string]*identity.Identity{
			"owner-token":    {UserID: uuid.New(), Email: "owner@example.com"},
			"joiner-token":   {UserID: uuid.New(), Email: "joiner@example.com"},
			"stranger-token": {UserID: uuid.New(), Email: "stranger@example.com"},
		},
	}

	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockResolver(ctrl)
	resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, token string) (*identity.Identity, error) {
			if id, ok := ts.users[token]; ok {
				return id, nil
			}
			return nil, identity.ErrInvalidToken
		},
	).AnyTimes()

	engine, err := NewEngine(observability.Config{Environment: "test"}, nil, cfg.TrustedProxies)
	require.NoError(t, err)
	NewServer(ServerParams{
		Gin:             engine,
		Cfg:             cfg,
		Resolver:        resolver,
		AuthzSvc:        authzSvc,
		ProvisioningSvc: provisioningSvc,
		InvitationSvc:   invitationSvc,
		OrganizationSvc: orgservice.NewService(orgRepo, clk),
		SubscriptionSvc: subscriptionservice.NewService(conn, subRepo),
		TierSvc:         tierservice.NewService(conn, tierrepository.Provide()),
		Sections:        sections,
		VerifyLimiter:   limiter,
	})
	ts.engine = engine
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type onboardingResponse struct {
	OrganizationID string    `json:"organizationId"`
	SubscriptionID string    `json:"subscriptionId"`
	TrialEndsAt    time.Time `json:"trialEndsAt"`
	Sections       []string  `json:"sections"`
}

func (ts *testServer) onboard(t *testing.T, name string) onboardingResponse {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/onboarding", "owner-token", map[string]any{
		"organizationName": name,
		"sections":         []string{"bookings", "calendar"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[onboardingResponse](t, rec)
}

func (ts *testServer) invite(t *testing.T, orgID, email string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invitations", "owner-token", map[string]any{
		"email": email,
		"role":  "member",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[struct {
		Token string `json:"token"`
	}](t, rec)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestOnboardingCreatesTrial(t *testing.T) {
	ts := newTestServer(t)
	resp := ts.onboard(t, "Skyline Aviation")

	assert.NotEmpty(t, resp.OrganizationID)
	assert.Equal(t, []string{"bookings", "calendar"}, resp.Sections)
	assert.Equal(t, ts.clock.Now().Add(14*24*time.Hour), resp.TrialEndsAt.UTC())

	rec := ts.do(t, http.MethodGet, "/api/organizations/"+resp.OrganizationID+"/subscription", "owner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sub := decode[struct {
		ID           string `json:"id"`
		Status       string `json:"status"`
		SeatLimit    int    `json:"seatLimit"`
		Entitlements []struct {
			Section  string `json:"section"`
			IsActive bool   `json:"isActive"`
		} `json:"entitlements"`
	}](t, rec)
	assert.Equal(t, resp.SubscriptionID, sub.ID)
	assert.Equal(t, "trial", sub.Status)
	assert.Equal(t, 5, sub.SeatLimit)
	assert.Len(t, sub.Entitlements, 2)

	rec = ts.do(t, http.MethodGet, "/api/me", "owner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[struct {
		Organizations []struct {
			ID          string `json:"id"`
			DisplayName string `json:"displayName"`
			Role        string `json:"role"`
		} `json:"organizations"`
	}](t, rec)
	require.Len(t, me.Organizations, 1)
	assert.Equal(t, "Skyline Aviation", me.Organizations[0].DisplayName)
	assert.Equal(t, "owner", me.Organizations[0].Role)
}

func TestOnboardingValidation(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/onboarding", "owner-token", map[string]any{
		"organizationName": "  ",
		"sections":         []string{"bookings"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "validation_error", body.Error.Type)
	require.Len(t, body.Error.Errors, 1)
	assert.Equal(t, "invalid_organization_name", body.Error.Errors[0].Code)
	assert.Equal(t, "organizationName", body.Error.Errors[0].Field)

	rec = ts.do(t, http.MethodPost, "/api/onboarding", "owner-token", map[string]any{
		"organizationName": "X",
		"sections":         []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/onboarding", "owner-token", map[string]any{
		"organizationName": "X",
		"sections":         []string{"hangar"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body = decode[errorResponse](t, rec)
	assert.Equal(t, "unknown_section", body.Error.Errors[0].Code)

	rec = ts.do(t, http.MethodGet, "/api/me", "owner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(mustField(t, rec, "organizations")))
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, field string) json.RawMessage {
	t.Helper()
	var payload map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload[field]
}

func TestAuthRequired(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/onboarding", "", map[string]any{"organizationName": "X"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/me", "forged-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decode[errorResponse](t, rec)
	assert.Equal(t, "unauthorized", body.Error.Type)
}

func TestOrganizationAccessControl(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.onboard(t, "Harbor Partners").OrganizationID

	rec := ts.do(t, http.MethodGet, "/api/organizations/"+orgID, "stranger-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/organizations/not-an-id", "owner-token", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/organizations/"+orgID, "owner-token", map[string]any{
		"commercialName": "Harbor",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	org := decode[struct {
		DisplayName string `json:"displayName"`
	}](t, rec)
	assert.Equal(t, "Harbor", org.DisplayName)

	token := ts.invite(t, orgID, "joiner@example.com")
	rec = ts.do(t, http.MethodPost, "/api/invitations/accept", "joiner-token", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Members can read but not invite or rename.
	rec = ts.do(t, http.MethodGet, "/api/organizations/"+orgID+"/members", "joiner-token", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	members := decode[struct {
		Members []struct {
			Role string `json:"role"`
		} `json:"members"`
	}](t, rec)
	assert.Len(t, members.Members, 2)

	rec = ts.do(t, http.MethodGet, "/api/organizations/"+orgID+"/tiers", "joiner-token", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/organizations/"+orgID+"/invitations", "joiner-token", map[string]any{
		"email": "friend@example.com",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/organizations/"+orgID, "joiner-token", map[string]any{
		"legalName": "Hijacked",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestInvitationVerifyAndAccept(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.onboard(t, "Skyline Aviation").OrganizationID
	token := ts.invite(t, orgID, "joiner@example.com")

	rec := ts.do(t, http.MethodGet, "/api/invitations/verify?token="+token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	verified := decode[struct {
		Invitation struct {
			OrganizationID string `json:"organizationId"`
			Email          string `json:"email"`
		} `json:"invitation"`
		OrganizationDisplayName string `json:"organizationDisplayName"`
	}](t, rec)
	assert.Equal(t, orgID, verified.Invitation.OrganizationID)
	assert.Equal(t, "joiner@example.com", verified.Invitation.Email)
	assert.Equal(t, "Skyline Aviation", verified.OrganizationDisplayName)

	again := ts.do(t, http.MethodGet, "/api/invitations/verify?token="+token, "", nil)
	assert.Equal(t, rec.Body.String(), again.Body.String())

	rec = ts.do(t, http.MethodPost, "/api/invitations/accept", "stranger-token", map[string]any{"token": token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/invitations/accept", "joiner-token", map[string]any{"token": token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decode[struct {
		OrganizationID string `json:"organizationId"`
		Role           string `json:"role"`
	}](t, rec)
	assert.Equal(t, orgID, accepted.OrganizationID)
	assert.Equal(t, "member", accepted.Role)

	rec = ts.do(t, http.MethodPost, "/api/invitations/accept", "joiner-token", map[string]any{"token": token})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/invitations/verify?token="+token, "", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_used", decode[errorResponse](t, rec).Error.Type)
}

func TestInvitationVerifyFailures(t *testing.T) {
	ts := newTestServer(t)
	orgID := ts.onboard(t, "Skyline Aviation").OrganizationID
	token := ts.invite(t, orgID, "late@example.com")

	rec := ts.do(t, http.MethodGet, "/api/invitations/verify", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_token", decode[errorResponse](t, rec).Error.Errors[0].Code)

	rec = ts.do(t, http.MethodGet, "/api/invitations/verify?token=nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.clock.Advance(72 * time.Hour)
	rec = ts.do(t, http.MethodGet, "/api/invitations/verify?token="+token, "", nil)
	require.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "expired", decode[errorResponse](t, rec).Error.Type)
}

func TestInvitationVerifyRateLimited(t *testing.T) {
	ts := newTestServer(t, withVerifyLimit(0.01, 2))

	for i := 0; i < 2; i++ {
		rec := ts.do(t, http.MethodGet, "/api/invitations/verify?token=nope", "", nil)
		require.Equal(t, http.StatusNotFound, rec.Code)
	}

	rec := ts.do(t, http.MethodGet, "/api/invitations/verify?token=nope", "", nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decode[errorResponse](t, rec).Error.Type)
}

func (ts *testServer) verifyFrom(t *testing.T, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/invitations/verify?token=nope", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func TestInvitationVerifyRateLimitIgnoresUntrustedForwardedFor(t *testing.T) {
	ts := newTestServer(t, withVerifyLimit(0.01, 2))

	codes := make([]int, 0, 6)
	for i := 1; i <= 6; i++ {
		rec := ts.verifyFrom(t, "203.0.113.7:40000", fmt.Sprintf("10.0.0.%d", i))
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{
		http.StatusNotFound,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
		http.StatusTooManyRequests,
	}, codes)
}

func TestInvitationVerifyRateLimitHonorsTrustedProxy(t *testing.T) {
	ts := newTestServer(t, withVerifyLimit(0.01, 1), withTrustedProxies("203.0.113.0/24"))

	for i := 1; i <= 3; i++ {
		rec := ts.verifyFrom(t, "203.0.113.7:40000", fmt.Sprintf("10.0.0.%d", i))
		assert.Equal(t, http.StatusNotFound, rec.Code, "client %d", i)
	}

	rec := ts.verifyFrom(t, "203.0.113.7:40000", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestListSections(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/sections", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"bookings"`)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
