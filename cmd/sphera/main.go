package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/sphera-erp/sphera/internal/clock"
	"github.com/sphera-erp/sphera/internal/config"
	"github.com/sphera-erp/sphera/internal/migration"
	"github.com/sphera-erp/sphera/internal/observability"
	"github.com/sphera-erp/sphera/internal/server"
	"github.com/sphera-erp/sphera/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		db.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
