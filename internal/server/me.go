package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
)

type meResponse struct {
	UserID        string                                            `json:"userId"`
	Email         string                                            `json:"email"`
	Organizations []organizationdomain.OrganizationListResponseItem `json:"organizations"`
}

func (s *Server) Me(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), id.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if orgs == nil {
		orgs = []organizationdomain.OrganizationListResponseItem{}
	}

	c.JSON(http.StatusOK, meResponse{
		UserID:        id.UserID.String(),
		Email:         id.Email,
		Organizations: orgs,
	})
}
