package identity

import (
	"github.com/smallbiznis/sharehold/internal/config"
	"go.uber.org/fx"
)

var Module = fx.Module("identity",
	fx.Provide(NewResolver),
)

func NewResolver(cfg config.Config) (Resolver, error) {
	return NewJWTResolver(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.JWTAudience, cfg.Auth.ClockSkew)
}
