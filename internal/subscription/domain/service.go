package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	GetByOrgID(ctx context.Context, orgID snowflake.ID) (*SubscriptionResponse, error)
}

type EntitlementResponse struct {
	Section  string `json:"section"`
	IsActive bool   `json:"isActive"`
}

type SubscriptionResponse struct {
	ID           string                `json:"id"`
	OrgID        string                `json:"organizationId"`
	Status       SubscriptionStatus    `json:"status"`
	TrialEndsAt  *time.Time            `json:"trialEndsAt"`
	SeatLimit    int                   `json:"seatLimit"`
	Entitlements []EntitlementResponse `json:"entitlements"`
	CreatedAt    time.Time             `json:"createdAt"`
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrNotFound            = errors.New("subscription_not_found")
)
