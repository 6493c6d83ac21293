package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/events"
	"github.com/smallbiznis/sharehold/internal/identity"
	"github.com/smallbiznis/sharehold/internal/invitation/domain"
	"github.com/smallbiznis/sharehold/internal/observability/logger"
	"github.com/smallbiznis/sharehold/internal/observability/metrics"
	"github.com/smallbiznis/sharehold/internal/observability/tracing"
	orgdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	"github.com/smallbiznis/sharehold/pkg/db"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultStoreTimeout  = 10 * time.Second
	defaultInvitationTTL = 7 * 24 * time.Hour
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Config     config.Config
	Repo       domain.Repository
	OrgRepo    orgdomain.Repository
	SubRepo    subscriptiondomain.Repository
	Clock      clock.Clock
	GenID      *snowflake.Node
	Outbox     *events.Outbox
	Dispatcher *events.Dispatcher
	Metrics    *metrics.WorkflowMetrics `optional:"true"`
}

type service struct {
	db           *gorm.DB
	repo         domain.Repository
	orgRepo      orgdomain.Repository
	subRepo      subscriptiondomain.Repository
	clock        clock.Clock
	genID        *snowflake.Node
	outbox       *events.Outbox
	dispatcher   *events.Dispatcher
	metrics      *metrics.WorkflowMetrics
	storeTimeout time.Duration
	ttl          time.Duration

	// acceptWithoutEmail lets identities lacking an email claim accept any
	// invitation whose token they hold.
	acceptWithoutEmail bool
}

func NewService(p Params) domain.Service {
	storeTimeout := p.Config.Tenant.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	ttl := p.Config.Tenant.InvitationTTL
	if ttl <= 0 {
		ttl = defaultInvitationTTL
	}
	return &service{
		db:           p.DB,
		repo:         p.Repo,
		orgRepo:      p.OrgRepo,
		subRepo:      p.SubRepo,
		clock:        p.Clock,
		genID:        p.GenID,
		outbox:       p.Outbox,
		dispatcher:   p.Dispatcher,
		metrics:      p.Metrics,
		storeTimeout: storeTimeout,
		ttl:          ttl,

		acceptWithoutEmail: p.Config.Tenant.AcceptWithoutEmail,
	}
}

func (s *service) Create(ctx context.Context, inviter *identity.Identity, orgID snowflake.ID, req domain.CreateRequest) (*domain.CreateResult, error) {
	if inviter == nil {
		return nil, domain.ErrInvalidUser
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, err
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = orgdomain.RoleMember
	}
	if role != orgdomain.RoleAdmin && role != orgdomain.RoleMember {
		return nil, domain.ErrInvalidRole
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	org, err := s.orgRepo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}

	rawToken, tokenHash, err := domain.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv := domain.Invitation{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		Email:     email,
		Role:      role,
		TokenHash: tokenHash,
		InvitedBy: inviter.UserID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	evt := s.outbox.New(org.ID, events.TypeInvitationCreated, map[string]any{
		"invitationId": inv.ID.String(),
		"role":         inv.Role,
		"expiresAt":    inv.ExpiresAt.Format(time.RFC3339),
	}, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, inv); err != nil {
			return fmt.Errorf("insert invitation: %w", err)
		}
		return s.outbox.Append(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	s.dispatcher.Dispatch(ctx, evt)

	return &domain.CreateResult{
		Invitation: domain.ToView(&inv),
		Token:      rawToken,
	}, nil
}

// Verify resolves a token to a usable invitation and the inviting organization's display name.
// It never writes.
func (s *service) Verify(ctx context.Context, token string) (*domain.VerifyResult, error) {
	ctx, span := otel.Tracer("sharehold/invitation").Start(ctx, "invitation.verify")
	defer span.End()

	inv, org, err := s.lookup(ctx, token)
	s.metrics.IncInvitationVerify(outcomeFor(err))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.String("organization_id", inv.OrgID.String()))

	return &domain.VerifyResult{
		Invitation:              domain.ToView(inv),
		OrganizationDisplayName: orgdomain.DisplayName(org),
	}, nil
}

func (s *service) Accept(ctx context.Context, invitee *identity.Identity, token string) (*domain.AcceptResult, error) {
	ctx, span := otel.Tracer("sharehold/invitation").Start(ctx, "invitation.accept")
	defer span.End()

	result, err := s.accept(ctx, invitee, token)
	s.metrics.IncInvitationAccept(outcomeFor(err))
	if err != nil {
		recordSpanError(span, err)
		return nil, err
	}
	return result, nil
}

func (s *service) accept(ctx context.Context, invitee *identity.Identity, token string) (*domain.AcceptResult, error) {
	if invitee == nil {
		return nil, domain.ErrInvalidUser
	}

	inv, org, err := s.lookup(ctx, token)
	if err != nil {
		return nil, err
	}
	email := strings.TrimSpace(invitee.Email)
	switch {
	case email == "" && !s.acceptWithoutEmail:
		return nil, domain.ErrEmailRequired
	case email != "" && !strings.EqualFold(email, inv.Email):
		return nil, domain.ErrEmailMismatch
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.clock.Now()
	evt := s.outbox.New(inv.OrgID, events.TypeInvitationAccepted, map[string]any{
		"invitationId": inv.ID.String(),
		"userId":       invitee.UserID.String(),
		"role":         inv.Role,
	}, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgRepo := s.orgRepo.WithTx(tx)

		existing, err := orgRepo.FindMember(ctx, inv.OrgID, invitee.UserID)
		if err != nil {
			return fmt.Errorf("find member: %w", err)
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}

		// Concurrent accepts for the same organization queue on this row lock
		// before counting seats.
		sub, err := s.subRepo.LockLatestByOrgID(ctx, tx, inv.OrgID)
		if err != nil {
			return fmt.Errorf("lock subscription: %w", err)
		}
		if sub != nil && sub.SeatLimit > 0 {
			count, err := orgRepo.CountMembers(ctx, inv.OrgID)
			if err != nil {
				return fmt.Errorf("count members: %w", err)
			}
			if count >= int64(sub.SeatLimit) {
				return domain.ErrSeatLimitReached
			}
		}

		updated, err := s.repo.WithTx(tx).MarkAccepted(ctx, inv.ID, invitee.UserID, now)
		if err != nil {
			return fmt.Errorf("mark invitation accepted: %w", err)
		}
		if updated == 0 {
			return domain.ErrInvitationAlreadyUsed
		}

		if err := orgRepo.AddMember(ctx, orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     inv.OrgID,
			UserID:    invitee.UserID,
			Role:      inv.Role,
			CreatedAt: now,
		}); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrAlreadyMember
			}
			return fmt.Errorf("add member: %w", err)
		}

		return s.outbox.Append(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("invitation accepted",
		zap.String("invitation_id", inv.ID.String()),
		zap.String("organization_id", inv.OrgID.String()),
		zap.String("role", inv.Role),
	)
	s.dispatcher.Dispatch(ctx, evt)

	return &domain.AcceptResult{
		OrganizationID:          inv.OrgID.String(),
		OrganizationDisplayName: orgdomain.DisplayName(org),
		Role:                    inv.Role,
	}, nil
}

// lookup applies the verification checks in order: token present, invitation
// exists, not yet accepted, not expired.
func (s *service) lookup(ctx context.Context, token string) (*domain.Invitation, *orgdomain.Organization, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil, domain.ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	inv, err := s.repo.FindByTokenHash(ctx, domain.HashToken(token))
	if err != nil {
		return nil, nil, fmt.Errorf("find invitation: %w", err)
	}
	if inv == nil {
		return nil, nil, domain.ErrInvitationNotFound
	}
	if inv.IsAccepted() {
		return nil, nil, domain.ErrInvitationAlreadyUsed
	}
	if inv.IsExpired(s.clock.Now()) {
		return nil, nil, domain.ErrInvitationExpired
	}

	org, err := s.orgRepo.FindByID(ctx, inv.OrgID)
	if err != nil {
		return nil, nil, fmt.Errorf("find organization: %w", err)
	}

	return inv, org, nil
}

func normalizeEmail(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", domain.ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(raw)
	if err != nil || addr.Address != raw {
		return "", domain.ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidToken), errors.Is(err, domain.ErrInvalidUser):
		return metrics.OutcomeValidation
	case errors.Is(err, domain.ErrInvitationNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrInvitationAlreadyUsed):
		return metrics.OutcomeAlreadyUsed
	case errors.Is(err, domain.ErrInvitationExpired):
		return metrics.OutcomeExpired
	case errors.Is(err, domain.ErrEmailMismatch), errors.Is(err, domain.ErrEmailRequired):
		return metrics.OutcomeForbidden
	case errors.Is(err, domain.ErrAlreadyMember), errors.Is(err, domain.ErrSeatLimitReached):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeStoreError
	}
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(tracing.SafeError(err))
	span.SetStatus(codes.Error, outcomeFor(err))
}
