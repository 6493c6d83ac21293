package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/tier/domain"
	"gorm.io/gorm"
)

type service struct {
	db   *gorm.DB
	repo domain.Repository
}

func NewService(db *gorm.DB, repo domain.Repository) domain.Service {
	return &service{db: db, repo: repo}
}

func (s *service) List(ctx context.Context, orgID snowflake.ID) ([]domain.TierResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	tiers, err := s.repo.ListByOrgID(ctx, s.db, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.TierResponse, 0, len(tiers))
	for _, t := range tiers {
		resp = append(resp, domain.TierResponse{
			ID:                  t.ID.String(),
			Name:                t.Name,
			Description:         t.Description,
			BookingDaysPerMonth: t.BookingDaysPerMonth,
			Position:            t.Position,
		})
	}
	return resp, nil
}
