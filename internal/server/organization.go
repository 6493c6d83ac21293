package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
	"github.com/smallbiznis/sharehold/pkg/db/pagination"
)

type updateOrganizationRequest struct {
	LegalName      *string `json:"legalName"`
	CommercialName *string `json:"commercialName"`
}

func (s *Server) GetOrganization(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	org, err := s.organizationSvc.GetByID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	var req updateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Update(c.Request.Context(), orgID, organizationdomain.UpdateOrganizationRequest{
		LegalName:      req.LegalName,
		CommercialName: req.CommercialName,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, org)
}

func (s *Server) ListOrganizationMembers(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	page := pagination.Pagination{PageToken: strings.TrimSpace(c.Query("pageToken"))}
	if raw := strings.TrimSpace(c.Query("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size < 0 {
			AbortWithError(c, newValidationError("pageSize", "invalid_page_size", "invalid page size"))
			return
		}
		page.PageSize = size
	}

	resp, err := s.organizationSvc.ListMembers(c.Request.Context(), orgID, page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
