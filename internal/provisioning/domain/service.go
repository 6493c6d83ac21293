package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/smallbiznis/sharehold/internal/identity"
)

const (
	TrialPeriod      = 14 * 24 * time.Hour
	DefaultSeatLimit = 5
)

// Provisioning steps, in execution order.
const (
	StepOrganization = "organization"
	StepMembership   = "membership"
	StepSubscription = "subscription"
	StepEntitlements = "entitlements"
	StepOutbox       = "outbox"
	StepCommit       = "commit"
)

type Service interface {
	Provision(ctx context.Context, owner *identity.Identity, req Request) (*Result, error)
}

type Request struct {
	OrganizationName string   `json:"organizationName"`
	Sections         []string `json:"sections"`
}

type Result struct {
	OrganizationID string    `json:"organizationId"`
	SubscriptionID string    `json:"subscriptionId"`
	TrialEndsAt    time.Time `json:"trialEndsAt"`
	Sections       []string  `json:"sections"`
}

var (
	ErrInvalidOwner            = errors.New("invalid_owner")
	ErrInvalidOrganizationName = errors.New("invalid_organization_name")
	ErrInvalidSections         = errors.New("invalid_sections")
	ErrUnknownSection          = errors.New("unknown_section")
)

// StoreError reports the provisioning step whose write failed. Nothing from
// the attempt is persisted.
type StoreError struct {
	Step string
	Err  error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("provision %s: %v", e.Step, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
