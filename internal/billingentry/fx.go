package billingentry

import (
	"github.com/sphera-erp/sphera/internal/billingentry/repository"
	"github.com/sphera-erp/sphera/internal/billingentry/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billingentry.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
