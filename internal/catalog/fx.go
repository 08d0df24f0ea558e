package catalog

import (
	"github.com/sphera-erp/sphera/internal/catalog/repository"
	"github.com/sphera-erp/sphera/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
