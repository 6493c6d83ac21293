package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/sharehold/internal/clock"
	"github.com/smallbiznis/sharehold/internal/organization/domain"
	"github.com/smallbiznis/sharehold/pkg/db/pagination"
)

type service struct {
	repo  domain.Repository
	clock clock.Clock
}

func NewService(repo domain.Repository, clk clock.Clock) domain.Service {
	return &service{
		repo:  repo,
		clock: clk,
	}
}

func (s *service) GetByID(ctx context.Context, orgID snowflake.ID) (*domain.OrganizationResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	return toResponse(org), nil
}

func (s *service) Update(ctx context.Context, orgID snowflake.ID, req domain.UpdateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	org, err := s.repo.FindByID(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}

	if req.LegalName != nil {
		name := strings.TrimSpace(*req.LegalName)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		org.LegalName = name
		org.Slug = slug.Make(name)
	}
	if req.CommercialName != nil {
		name := strings.TrimSpace(*req.CommercialName)
		if name == "" {
			org.CommercialName = nil
		} else {
			org.CommercialName = &name
		}
	}
	org.UpdatedAt = s.clock.Now()

	if err := s.repo.UpdateOrganization(ctx, *org); err != nil {
		return nil, err
	}

	return toResponse(org), nil
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID uuid.UUID) ([]domain.OrganizationListResponseItem, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID: item.ID.String(),
			DisplayName: domain.DisplayName(&domain.Organization{
				LegalName:      item.LegalName,
				CommercialName: item.CommercialName,
			}),
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID, page pagination.Pagination) (*domain.ListMembersResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	cursor, err := pagination.DecodeCursor(page.PageToken)
	if err != nil {
		return nil, err
	}
	var afterID snowflake.ID
	if cursor != nil {
		afterID, err = snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, pagination.ErrInvalidPageToken
		}
	}

	limit := page.Limit()
	members, err := s.repo.ListMembers(ctx, orgID, afterID, limit+1)
	if err != nil {
		return nil, err
	}

	members, pageInfo, err := pagination.BuildCursorPageInfo(members, limit, func(m *domain.OrganizationMember) pagination.Cursor {
		return pagination.Cursor{ID: m.ID.String(), CreatedAt: m.CreatedAt.Format(time.RFC3339)}
	})
	if err != nil {
		return nil, err
	}

	resp := &domain.ListMembersResponse{
		Members:  make([]domain.MemberResponse, 0, len(members)),
		PageInfo: pageInfo,
	}
	for _, m := range members {
		resp.Members = append(resp.Members, domain.MemberResponse{
			ID:        m.ID.String(),
			UserID:    m.UserID.String(),
			Role:      m.Role,
			CreatedAt: m.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) MemberRole(ctx context.Context, orgID snowflake.ID, userID uuid.UUID) (string, error) {
	if orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	if userID == uuid.Nil {
		return "", domain.ErrInvalidUser
	}

	member, err := s.repo.FindMember(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", domain.ErrNotMember
	}
	return member.Role, nil
}

func toResponse(org *domain.Organization) *domain.OrganizationResponse {
	return &domain.OrganizationResponse{
		ID:             org.ID.String(),
		LegalName:      org.LegalName,
		CommercialName: org.CommercialName,
		DisplayName:    domain.DisplayName(org),
		Slug:           org.Slug,
		CreatedAt:      org.CreatedAt,
		UpdatedAt:      org.UpdatedAt,
	}
}
