package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/sharehold/internal/identity"
	obscontext "github.com/smallbiznis/sharehold/internal/observability/context"
	"github.com/smallbiznis/sharehold/internal/observability/logger"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "bearer "
	actorTypeUser       = "user"
)

// AuthRequired resolves the bearer token into an identity on the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c.GetHeader(headerAuthorization))
		if !ok {
			AbortWithError(c, identity.ErrMissingToken)
			return
		}

		ctx := c.Request.Context()
		id, err := s.resolver.Resolve(ctx, token)
		if err != nil || id == nil {
			logger.FromContext(ctx).Debug("bearer token rejected", zap.Error(err))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		ctx = identity.WithIdentity(ctx, id)
		ctx = obscontext.WithActor(ctx, actorTypeUser, id.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}

func identityFromContext(c *gin.Context) (*identity.Identity, bool) {
	return identity.FromContext(c.Request.Context())
}
