package authorization

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
)

var (
	ErrInvalidActor        = errors.New("invalid_actor")
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidObject       = errors.New("invalid_object")
	ErrInvalidAction       = errors.New("invalid_action")
	ErrForbidden           = errors.New("forbidden")
)

// Service decides whether a member may perform an action inside an organization.
type Service interface {
	// Authorize returns the caller's role when the action is allowed.
	Authorize(ctx context.Context, userID uuid.UUID, orgID snowflake.ID, object string, action string) (string, error)
}
