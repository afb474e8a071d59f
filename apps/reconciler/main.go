package main

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	"github.com/smallbiznis/mutrapro/internal/migration"
	"github.com/smallbiznis/mutrapro/internal/observability"
	"github.com/smallbiznis/mutrapro/internal/payment"
	"github.com/smallbiznis/mutrapro/internal/ratelimit"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	"github.com/smallbiznis/mutrapro/internal/scheduler"
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

		// Payment coordinator and its record store, needed by the outbox.
		recordstore.Module,
		idempotency.Module,
		ratelimit.Module,
		payment.Module,

		// No server module!
		fx.Provide(scheduler.ProvideConfig),
		fx.Provide(scheduler.New),
		fx.Invoke(StartScheduler),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func StartScheduler(lc fx.Lifecycle, s *scheduler.Scheduler) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
