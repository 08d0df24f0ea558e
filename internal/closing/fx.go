package closing

import (
	redis "github.com/redis/go-redis/v9"
	"github.com/sphera-erp/sphera/internal/closing/domain"
	"github.com/sphera-erp/sphera/internal/closing/gateway"
	"github.com/sphera-erp/sphera/internal/closing/lock"
	"github.com/sphera-erp/sphera/internal/closing/service"
	"github.com/sphera-erp/sphera/internal/config"
	"go.uber.org/fx"
)

func provideRedis(cfg config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func provideGateway(cfg config.Config) domain.InvoiceGateway {
	return gateway.New(cfg.Gateway)
}

var Module = fx.Module("closing.service",
	fx.Provide(provideRedis),
	fx.Provide(lock.New),
	fx.Provide(provideGateway),
	fx.Provide(service.New),
)
