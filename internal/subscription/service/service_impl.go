package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	repo subscriptiondomain.Repository
}

func NewService(db *gorm.DB, repo subscriptiondomain.Repository) subscriptiondomain.Service {
	return &Service{db: db, repo: repo}
}

func (s *Service) GetByOrgID(ctx context.Context, orgID snowflake.ID) (*subscriptiondomain.SubscriptionResponse, error) {
	if orgID == 0 {
		return nil, subscriptiondomain.ErrInvalidOrganization
	}

	subscription, err := s.repo.FindLatestByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, subscriptiondomain.ErrNotFound
	}

	entitlements, err := s.repo.ListEntitlements(ctx, s.db, subscription.ID)
	if err != nil {
		return nil, err
	}

	resp := &subscriptiondomain.SubscriptionResponse{
		ID:           subscription.ID.String(),
		OrgID:        subscription.OrgID.String(),
		Status:       subscription.Status,
		TrialEndsAt:  subscription.TrialEndsAt,
		SeatLimit:    subscription.SeatLimit,
		Entitlements: make([]subscriptiondomain.EntitlementResponse, 0, len(entitlements)),
		CreatedAt:    subscription.CreatedAt,
	}
	for _, e := range entitlements {
		resp.Entitlements = append(resp.Entitlements, subscriptiondomain.EntitlementResponse{
			Section:  e.Section,
			IsActive: e.IsActive,
		})
	}
	return resp, nil
}
