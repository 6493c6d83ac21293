package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/sharehold/internal/observability/context"
	organizationdomain "github.com/smallbiznis/sharehold/internal/organization/domain"
)

const (
	contextOrgIDKey   = "org_id"
	contextOrgRoleKey = "org_role"
)

// authorizeOrgAction checks the caller's role in the organization named by :id.
func (s *Server) authorizeOrgAction(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := identityFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := orgIDFromParam(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		role, err := s.authzSvc.Authorize(c.Request.Context(), id.UserID, orgID, strings.TrimSpace(object), strings.TrimSpace(action))
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Set(contextOrgIDKey, orgID)
		c.Set(contextOrgRoleKey, role)
		c.Request = c.Request.WithContext(obscontext.WithOrgID(c.Request.Context(), orgID.String()))
		c.Next()
	}
}

func orgIDFromParam(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		return 0, organizationdomain.ErrInvalidOrganization
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil || parsed <= 0 {
		return 0, organizationdomain.ErrInvalidOrganization
	}
	return parsed, nil
}

// orgIDFromContext returns the organization resolved by authorizeOrgAction.
func orgIDFromContext(c *gin.Context) (snowflake.ID, bool) {
	value, ok := c.Get(contextOrgIDKey)
	if !ok {
		return 0, false
	}
	orgID, ok := value.(snowflake.ID)
	return orgID, ok && orgID != 0
}
