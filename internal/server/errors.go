package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sharehold/internal/authorization"
	"github.com/smallbiznis/sharehold/internal/identity"
	invitationdomain "github.com/smallbiznis/sharehold/internal/invitation/domain"
	organizationdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	provisioningdomain "github.com/smallbiznis/sharehold/internal/provisioning/domain"
	subscriptiondomain "github.com/smallbiznis/sharehold/internal/subscription/domain"
	tierdomain "github.com/smallbiznis/sharehold/internal/tier/domain"
	"github.com/smallbiznis/sharehold/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("conflict")
	ErrInternal       = errors.New("internal_error")
	ErrNotFound       = errors.New("not_found")
	ErrInvalidRequest = errors.New("invalid_request")
	ErrRateLimited    = errors.New("rate_limited")
)

// validationSentinels are domain errors reported as 400 with their own code.
var validationSentinels = []error{
	ErrInvalidRequest,
	provisioningdomain.ErrInvalidOwner,
	provisioningdomain.ErrInvalidOrganizationName,
	provisioningdomain.ErrInvalidSections,
	provisioningdomain.ErrUnknownSection,
	invitationdomain.ErrInvalidToken,
	invitationdomain.ErrInvalidEmail,
	invitationdomain.ErrInvalidRole,
	invitationdomain.ErrInvalidUser,
	organizationdomain.ErrInvalidName,
	organizationdomain.ErrInvalidUser,
	organizationdomain.ErrInvalidOrganization,
	subscriptiondomain.ErrInvalidOrganization,
	tierdomain.ErrInvalidOrganization,
	authorization.ErrInvalidOrganization,
	pagination.ErrInvalidPageToken,
}

var validationFields = map[error]string{
	provisioningdomain.ErrInvalidOrganizationName: "organizationName",
	provisioningdomain.ErrInvalidSections:         "sections",
	provisioningdomain.ErrUnknownSection:          "sections",
	invitationdomain.ErrInvalidToken:              "token",
	invitationdomain.ErrInvalidEmail:              "email",
	invitationdomain.ErrInvalidRole:               "role",
	organizationdomain.ErrInvalidName:             "legalName",
	pagination.ErrInvalidPageToken:                "pageToken",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel := validationSentinel(err); sentinel != nil {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(sentinel),
					Code:    code,
					Message: validationErrorMessage(err, sentinel),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, identity.ErrMissingToken),
		errors.Is(err, identity.ErrInvalidToken),
		errors.Is(err, authorization.ErrInvalidActor):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, organizationdomain.ErrNotMember):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, invitationdomain.ErrEmailMismatch):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "invitation was issued to a different email",
		}
	case errors.Is(err, invitationdomain.ErrEmailRequired):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "identity has no verified email",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, invitationdomain.ErrInvitationAlreadyUsed):
		return http.StatusConflict, errorPayload{
			Type:    "already_used",
			Message: "invitation already used",
		}
	case errors.Is(err, invitationdomain.ErrAlreadyMember):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "already a member",
		}
	case errors.Is(err, invitationdomain.ErrSeatLimitReached):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "seat limit reached",
		}
	case errors.Is(err, ErrConflict):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	case errors.Is(err, invitationdomain.ErrInvitationExpired):
		return http.StatusGone, errorPayload{
			Type:    "expired",
			Message: "invitation expired",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog returns the error type and code recorded by the request logger.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationSentinel(err error) error {
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	return nil
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, invitationdomain.ErrInvitationNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, subscriptiondomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorField(sentinel error) string {
	if field, ok := validationFields[sentinel]; ok {
		return field
	}
	code := sentinel.Error()
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return "request"
}

func validationErrorMessage(err, sentinel error) string {
	switch {
	case errors.Is(sentinel, provisioningdomain.ErrUnknownSection):
		// The wrapped error names the offending section.
		return err.Error()
	case errors.Is(sentinel, ErrInvalidRequest):
		return "invalid request"
	default:
		return "invalid value"
	}
}
