package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/sharehold/pkg/db/pagination"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

// IsValidRole reports whether role is one of the membership roles.
func IsValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

type Service interface {
	GetByID(ctx context.Context, orgID snowflake.ID) (*OrganizationResponse, error)
	Update(ctx context.Context, orgID snowflake.ID, req UpdateOrganizationRequest) (*OrganizationResponse, error)
	ListOrganizationsByUser(ctx context.Context, userID uuid.UUID) ([]OrganizationListResponseItem, error)
	ListMembers(ctx context.Context, orgID snowflake.ID, page pagination.Pagination) (*ListMembersResponse, error)
	MemberRole(ctx context.Context, orgID snowflake.ID, userID uuid.UUID) (string, error)
}

type UpdateOrganizationRequest struct {
	LegalName      *string
	CommercialName *string
}

type OrganizationResponse struct {
	ID             string    `json:"id"`
	LegalName      string    `json:"legalName"`
	CommercialName *string   `json:"commercialName"`
	DisplayName    string    `json:"displayName"`
	Slug           string    `json:"slug"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type OrganizationListResponseItem struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"createdAt"`
}

type MemberResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type ListMembersResponse struct {
	Members  []MemberResponse     `json:"members"`
	PageInfo *pagination.PageInfo `json:"pageInfo"`
}

var (
	ErrInvalidName         = errors.New("invalid_name")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("organization_not_found")
	ErrNotMember           = errors.New("not_member")
)
