package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/config"
	"github.com/smallbiznis/sharehold/internal/events"
	"github.com/smallbiznis/sharehold/internal/identity"
	"github.com/smallbiznis/sharehold/internal/observability/logger"
	"github.com/smallbiznis/sharehold/internal/observability/metrics"
	"github.com/smallbiznis/sharehold/internal/observability/tracing"
	orgdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	"github.com/smallbiznis/sharehold/internal/provisioning/domain"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultStoreTimeout = 10 * time.Second

type Params struct {
	fx.In

	DB         *gorm.DB
	Config     config.Config
	OrgRepo    orgdomain.Repository
	SubRepo    subscriptiondomain.Repository
	Sections   *config.SectionCatalogHolder
	Clock      clock.Clock
	GenID      *snowflake.Node
	Outbox     *events.Outbox
	Dispatcher *events.Dispatcher
	Metrics    *metrics.WorkflowMetrics `optional:"true"`
}

type service struct {
	db           *gorm.DB
	orgRepo      orgdomain.Repository
	subRepo      subscriptiondomain.Repository
	sections     *config.SectionCatalogHolder
	clock        clock.Clock
	genID        *snowflake.Node
	outbox       *events.Outbox
	dispatcher   *events.Dispatcher
	metrics      *metrics.WorkflowMetrics
	storeTimeout time.Duration
}

func NewService(p Params) domain.Service {
	storeTimeout := p.Config.Tenant.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	return &service{
		db:           p.DB,
		orgRepo:      p.OrgRepo,
		subRepo:      p.SubRepo,
		sections:     p.Sections,
		clock:        p.Clock,
		genID:        p.GenID,
		outbox:       p.Outbox,
		dispatcher:   p.Dispatcher,
		metrics:      p.Metrics,
		storeTimeout: storeTimeout,
	}
}

// Provision creates an organization owned by owner, a trial subscription and
// one active entitlement per requested section. Either every row is written or
// none is.
func (s *service) Provision(ctx context.Context, owner *identity.Identity, req domain.Request) (*domain.Result, error) {
	start := time.Now()
	ctx, span := otel.Tracer("sharehold/provisioning").Start(ctx, "tenant.provision")
	defer span.End()

	result, err := s.provision(ctx, owner, req)
	s.metrics.ObserveProvisioning(outcomeFor(err), time.Since(start))
	if err != nil {
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, outcomeFor(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("organization_id", result.OrganizationID),
		attribute.Int("sections", len(result.Sections)),
	)
	return result, nil
}

func (s *service) provision(ctx context.Context, owner *identity.Identity, req domain.Request) (*domain.Result, error) {
	if owner == nil || owner.UserID == uuid.Nil {
		return nil, domain.ErrInvalidOwner
	}
	name := strings.TrimSpace(req.OrganizationName)
	if name == "" {
		return nil, domain.ErrInvalidOrganizationName
	}
	sections, err := s.normalizeSections(req.Sections)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	now := s.clock.Now()
	trialEndsAt := now.Add(domain.TrialPeriod)

	org := orgdomain.Organization{
		ID:             s.genID.Generate(),
		LegalName:      name,
		CommercialName: &name,
		Slug:           slug.Make(name),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	sub := subscriptiondomain.Subscription{
		ID:          s.genID.Generate(),
		OrgID:       org.ID,
		Status:      subscriptiondomain.SubscriptionStatusTrial,
		TrialEndsAt: &trialEndsAt,
		SeatLimit:   domain.DefaultSeatLimit,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	entitlements := make([]subscriptiondomain.Entitlement, 0, len(sections))
	for _, section := range sections {
		entitlements = append(entitlements, subscriptiondomain.Entitlement{
			ID:             s.genID.Generate(),
			SubscriptionID: sub.ID,
			Section:        section,
			IsActive:       true,
			CreatedAt:      now,
		})
	}
	evt := s.outbox.New(org.ID, events.TypeTenantProvisioned, map[string]any{
		"subscriptionId": sub.ID.String(),
		"ownerId":        owner.UserID.String(),
		"sections":       sections,
		"trialEndsAt":    trialEndsAt.Format(time.RFC3339),
	}, now)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orgRepo := s.orgRepo.WithTx(tx)

		if err := orgRepo.CreateOrganization(ctx, org); err != nil {
			return &domain.StoreError{Step: domain.StepOrganization, Err: err}
		}
		if err := orgRepo.AddMember(ctx, orgdomain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    owner.UserID,
			Role:      orgdomain.RoleOwner,
			CreatedAt: now,
		}); err != nil {
			return &domain.StoreError{Step: domain.StepMembership, Err: err}
		}
		if err := s.subRepo.Insert(ctx, tx, &sub); err != nil {
			return &domain.StoreError{Step: domain.StepSubscription, Err: err}
		}
		if err := s.subRepo.InsertEntitlements(ctx, tx, entitlements); err != nil {
			return &domain.StoreError{Step: domain.StepEntitlements, Err: err}
		}
		if err := s.outbox.Append(ctx, tx, evt); err != nil {
			return &domain.StoreError{Step: domain.StepOutbox, Err: err}
		}
		return nil
	})
	if err != nil {
		var storeErr *domain.StoreError
		if !errors.As(err, &storeErr) {
			storeErr = &domain.StoreError{Step: domain.StepCommit, Err: err}
		}
		s.metrics.IncProvisioningFailure(storeErr.Step, storeErr.Err)
		logger.FromContext(ctx).Error("tenant provisioning failed",
			zap.String("step", storeErr.Step),
			zap.Error(storeErr.Err),
		)
		return nil, storeErr
	}

	logger.FromContext(ctx).Info("tenant provisioned",
		zap.String("organization_id", org.ID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Strings("sections", sections),
	)
	s.dispatcher.Dispatch(ctx, evt)

	return &domain.Result{
		OrganizationID: org.ID.String(),
		SubscriptionID: sub.ID.String(),
		TrialEndsAt:    trialEndsAt,
		Sections:       sections,
	}, nil
}

// normalizeSections trims, lowercases and dedupes codes, keeping first-seen order.
func (s *service) normalizeSections(raw []string) ([]string, error) {
	catalog := s.sections.Get()
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, section := range raw {
		code := strings.ToLower(strings.TrimSpace(section))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		if !catalog.Contains(code) {
			return nil, fmt.Errorf("%w: %s", domain.ErrUnknownSection, code)
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	if len(out) == 0 {
		return nil, domain.ErrInvalidSections
	}
	return out, nil
}

func outcomeFor(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, domain.ErrInvalidOwner),
		errors.Is(err, domain.ErrInvalidOrganizationName),
		errors.Is(err, domain.ErrInvalidSections),
		errors.Is(err, domain.ErrUnknownSection):
		return metrics.OutcomeValidation
	default:
		return metrics.OutcomeStoreError
	}
}
