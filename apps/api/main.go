package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/migration"
	"github.com/smallbiznis/mutrapro/internal/observability"
	"github.com/smallbiznis/mutrapro/internal/scheduler"
	"github.com/smallbiznis/mutrapro/internal/server"
	"github.com/smallbiznis/mutrapro/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		server.Module,

		// Runs only when OUTBOX_WORKER_ENABLED is set.
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
