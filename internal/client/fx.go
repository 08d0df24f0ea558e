package client

import (
	"github.com/sphera-erp/sphera/internal/client/repository"
	"github.com/sphera-erp/sphera/internal/client/service"
	"go.uber.org/fx"
)

var Module = fx.Module("client.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
