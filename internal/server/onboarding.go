package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	provisioningdomain "github.com/smallbiznis/sharehold/internal/provisioning/domain"
)

type onboardingRequest struct {
	OrganizationName string   `json:"organizationName"`
	Sections         []string `json:"sections"`
}

// Onboard provisions a new organization owned by the caller.
func (s *Server) Onboard(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req onboardingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.provisioningSvc.Provision(c.Request.Context(), id, provisioningdomain.Request{
		OrganizationName: req.OrganizationName,
		Sections:         req.Sections,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
