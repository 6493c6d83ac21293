package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	tierdomain "github.com/smallbiznis/sharehold/internal/tier/domain"
)

func (s *Server) GetSubscription(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	sub, err := s.subscriptionSvc.GetByOrgID(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (s *Server) ListTiers(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrForbidden)
		return
	}

	tiers, err := s.tierSvc.List(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if tiers == nil {
		tiers = []tierdomain.TierResponse{}
	}

	c.JSON(http.StatusOK, gin.H{"tiers": tiers})
}

func (s *Server) ListSections(c *gin.Context) {
	c.JSON(http.StatusOK, s.sections.Get())
}
