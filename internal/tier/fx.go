package tier

import (
	"github.com/smallbiznis/sharehold/internal/tier/repository"
	"github.com/smallbiznis/sharehold/internal/tier/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tier.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
