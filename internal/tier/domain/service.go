package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context, orgID snowflake.ID) ([]TierResponse, error)
}

type TierResponse struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Description         *string `json:"description"`
	BookingDaysPerMonth int     `json:"bookingDaysPerMonth"`
	Position            int     `json:"position"`
}

var ErrInvalidOrganization = errors.New("invalid_organization")
