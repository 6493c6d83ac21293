package server

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/smallbiznis/sharehold/internal/identity"
	invitationdomain "github.com/smallbiznis/sharehold/internal/invitation/domain"
	provisioningdomain "github.com/smallbiznis/sharehold/internal/provisioning/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{provisioningdomain.ErrInvalidOrganizationName, http.StatusBadRequest},
		{fmt.Errorf("%w: hangar", provisioningdomain.ErrUnknownSection), http.StatusBadRequest},
		{invitationdomain.ErrInvalidToken, http.StatusBadRequest},
		{identity.ErrInvalidToken, http.StatusUnauthorized},
		{identity.ErrMissingToken, http.StatusUnauthorized},
		{invitationdomain.ErrEmailMismatch, http.StatusForbidden},
		{invitationdomain.ErrEmailRequired, http.StatusForbidden},
		{invitationdomain.ErrInvitationNotFound, http.StatusNotFound},
		{invitationdomain.ErrInvitationAlreadyUsed, http.StatusConflict},
		{invitationdomain.ErrSeatLimitReached, http.StatusConflict},
		{invitationdomain.ErrInvitationExpired, http.StatusGone},
		{ErrRateLimited, http.StatusTooManyRequests},
		{&provisioningdomain.StoreError{Step: provisioningdomain.StepSubscription, Err: errors.New("disk full")}, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		if status == http.StatusInternalServerError {
			assert.Equal(t, "internal server error", payload.Message)
		}
	}
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(provisioningdomain.ErrInvalidSections)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "invalid_sections", code)

	errType, code = classifyErrorForLog(invitationdomain.ErrInvitationExpired)
	assert.Equal(t, "expired", errType)
	assert.Equal(t, "expired", code)
}
