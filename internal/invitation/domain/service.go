package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/sharehold/internal/identity"
)

type Service interface {
	Create(ctx context.Context, inviter *identity.Identity, orgID snowflake.ID, req CreateRequest) (*CreateResult, error)
	Verify(ctx context.Context, token string) (*VerifyResult, error)
	Accept(ctx context.Context, invitee *identity.Identity, token string) (*AcceptResult, error)
}

type CreateRequest struct {
	Email string
	Role  string
}

type InvitationView struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organizationId"`
	Email          string    `json:"email"`
	Role           string    `json:"role"`
	ExpiresAt      time.Time `json:"expiresAt"`
	CreatedAt      time.Time `json:"createdAt"`
}

type CreateResult struct {
	Invitation InvitationView `json:"invitation"`
	// Token is returned once; only its digest is stored.
	Token string `json:"token"`
}

type VerifyResult struct {
	Invitation              InvitationView `json:"invitation"`
	OrganizationDisplayName string         `json:"organizationDisplayName"`
}

type AcceptResult struct {
	OrganizationID          string `json:"organizationId"`
	OrganizationDisplayName string `json:"organizationDisplayName"`
	Role                    string `json:"role"`
}

var (
	ErrInvalidToken          = errors.New("invalid_token")
	ErrInvalidEmail          = errors.New("invalid_email")
	ErrInvalidRole           = errors.New("invalid_role")
	ErrInvalidUser           = errors.New("invalid_user")
	ErrInvitationNotFound    = errors.New("invitation_not_found")
	ErrInvitationAlreadyUsed = errors.New("invitation_already_used")
	ErrInvitationExpired     = errors.New("invitation_expired")
	ErrEmailMismatch         = errors.New("invitation_email_mismatch")
	ErrEmailRequired         = errors.New("invitation_email_required")
	ErrAlreadyMember         = errors.New("already_member")
	ErrSeatLimitReached      = errors.New("seat_limit_reached")
)

func ToView(inv *Invitation) InvitationView {
	return InvitationView{
		ID:             inv.ID.String(),
		OrganizationID: inv.OrgID.String(),
		Email:          inv.Email,
		Role:           inv.Role,
		ExpiresAt:      inv.ExpiresAt,
		CreatedAt:      inv.CreatedAt,
	}
}
