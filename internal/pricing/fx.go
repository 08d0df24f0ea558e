package pricing

import (
	"github.com/sphera-erp/sphera/internal/pricing/repository"
	"github.com/sphera-erp/sphera/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
