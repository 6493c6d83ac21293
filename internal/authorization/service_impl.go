package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/google/uuid"
	"github.com/smallbiznis/sharehold/internal/observability/logger"
	orgdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectOrganization = "organization"
	ObjectMember       = "member"
	ObjectSubscription = "subscription"
	ObjectTier         = "tier"
	ObjectInvitation   = "invitation"
)

const (
	ActionOrganizationView   = "organization.view"
	ActionOrganizationUpdate = "organization.update"
	ActionMemberView         = "member.view"
	ActionSubscriptionView   = "subscription.view"
	ActionTierView           = "tier.view"
	ActionInvitationCreate   = "invitation.create"
)

type Params struct {
	fx.In

	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	OrgRepo  orgdomain.Repository
}

type ServiceImpl struct {
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	orgRepo  orgdomain.Repository
}

// NewEnforcer loads policies persisted through the gorm adapter and seeds the defaults.
func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

// NewMemoryEnforcer builds an enforcer with the default policies and no persistence.
func NewMemoryEnforcer() (*casbin.SyncedEnforcer, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		orgRepo:  p.OrgRepo,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, userID uuid.UUID, orgID snowflake.ID, object string, action string) (string, error) {
	if userID == uuid.Nil {
		return "", ErrInvalidActor
	}
	if orgID == 0 {
		return "", ErrInvalidOrganization
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return "", ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return "", ErrInvalidAction
	}

	member, err := s.orgRepo.FindMember(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		s.logDenied(ctx, "not_member", object, action)
		return "", ErrForbidden
	}

	role := strings.ToLower(strings.TrimSpace(member.Role))
	allowed, err := s.enforcer.Enforce(fmt.Sprintf("role:%s", role), object, action)
	if err != nil {
		return "", err
	}
	if !allowed {
		s.logDenied(ctx, role, object, action)
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) logDenied(ctx context.Context, role, object, action string) {
	logger.WithContext(ctx, s.log).Info("authorization denied",
		zap.String("role", role),
		zap.String("object", object),
		zap.String("action", action),
	)
}

func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	policies := [][]string{
		// Member permissions (read-only)
		{"role:member", ObjectOrganization, ActionOrganizationView},
		{"role:member", ObjectMember, ActionMemberView},
		{"role:member", ObjectSubscription, ActionSubscriptionView},
		{"role:member", ObjectTier, ActionTierView},

		// Admin permissions
		{"role:admin", ObjectOrganization, ActionOrganizationView},
		{"role:admin", ObjectOrganization, ActionOrganizationUpdate},
		{"role:admin", ObjectMember, ActionMemberView},
		{"role:admin", ObjectSubscription, ActionSubscriptionView},
		{"role:admin", ObjectTier, ActionTierView},
		{"role:admin", ObjectInvitation, ActionInvitationCreate},

		// Owner permissions
		{"role:owner", ObjectOrganization, "*"},
		{"role:owner", ObjectMember, "*"},
		{"role:owner", ObjectSubscription, "*"},
		{"role:owner", ObjectTier, "*"},
		{"role:owner", ObjectInvitation, "*"},
	}

	for _, policy := range policies {
		has, err := enforcer.HasPolicy(policy)
		if err != nil {
			return err
		}
		if has {
			continue
		}
		if _, err := enforcer.AddPolicy(policy); err != nil {
			return err
		}
	}
	return nil
}
