package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/sharehold/internal/authorization"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/identity"
	invitationdomain "github.com/smallbiznis/sharehold/internal/invitation/domain"
	"github.com/smallbiznis/sharehold/internal/observability"
	obslogger "github.com/smallbiznis/sharehold/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/sharehold/internal/observability/metrics"
	obstracing "github.com/smallbiznis/sharehold/internal/observability/tracing"
	organizationdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	provisioningdomain "github.com/smallbiznis/sharehold/internal/provisioning/domain"
	"github.com/smallbiznis/sharehold/internal/ratelimit"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/sharehold/internal/tier/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

// NewEngine builds the router. Forwarding headers are only trusted from
// trustedProxies; with none, ClientIP is the socket peer.
func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, trustedProxies []string) (*gin.Engine, error) {
	r := gin.New()
	if err := r.SetTrustedProxies(trustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r, nil
}

func registerGin(cfg config.Config, obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) (*gin.Engine, error) {
	return NewEngine(obsCfg, httpMetrics, cfg.TrustedProxies)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := strings.TrimSpace(cfg.HTTPAddr)
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	resolver        identity.Resolver
	authzSvc        authorization.Service
	provisioningSvc provisioningdomain.Service
	invitationSvc   invitationdomain.Service
	organizationSvc organizationdomain.Service
	subscriptionSvc subscriptiondomain.Service
	tierSvc         tierdomain.Service
	sections        *config.SectionCatalogHolder
	verifyLimiter   *ratelimit.InvitationVerifyLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Resolver        identity.Resolver
	AuthzSvc        authorization.Service
	ProvisioningSvc provisioningdomain.Service
	InvitationSvc   invitationdomain.Service
	OrganizationSvc organizationdomain.Service
	SubscriptionSvc subscriptiondomain.Service
	TierSvc         tierdomain.Service
	Sections        *config.SectionCatalogHolder
	VerifyLimiter   *ratelimit.InvitationVerifyLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics                `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		resolver:        p.Resolver,
		authzSvc:        p.AuthzSvc,
		provisioningSvc: p.ProvisioningSvc,
		invitationSvc:   p.InvitationSvc,
		organizationSvc: p.OrganizationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		tierSvc:         p.TierSvc,
		sections:        p.Sections,
		verifyLimiter:   p.VerifyLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerPublicRoutes()
	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerPublicRoutes() {
	api := s.engine.Group("/api")

	api.GET("/sections", s.ListSections)
	api.GET("/invitations/verify", s.InvitationVerifyRateLimit(), s.VerifyInvitation)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	api.GET("/me", s.Me)
	api.POST("/onboarding", s.Onboard)
	api.POST("/invitations/accept", s.AcceptInvitation)

	// -------- Organizations --------
	orgs := api.Group("/organizations/:id")
	orgs.GET("", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationView), s.GetOrganization)
	orgs.PATCH("", s.authorizeOrgAction(authorization.ObjectOrganization, authorization.ActionOrganizationUpdate), s.UpdateOrganization)
	orgs.GET("/members", s.authorizeOrgAction(authorization.ObjectMember, authorization.ActionMemberView), s.ListOrganizationMembers)
	orgs.POST("/invitations", s.authorizeOrgAction(authorization.ObjectInvitation, authorization.ActionInvitationCreate), s.CreateInvitation)

	// -------- Plan --------
	orgs.GET("/subscription", s.authorizeOrgAction(authorization.ObjectSubscription, authorization.ActionSubscriptionView), s.GetSubscription)
	orgs.GET("/tiers", s.authorizeOrgAction(authorization.ObjectTier, authorization.ActionTierView), s.ListTiers)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
