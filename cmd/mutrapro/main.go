package main

import (
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/migration"
	"github.com/smallbiznis/mutrapro/internal/observability"
	"github.com/smallbiznis/mutrapro/internal/scheduler"
	"github.com/smallbiznis/mutrapro/internal/server"
	"github.com/smallbiznis/mutrapro/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:     "mutrapro",
		Short:   "MuTraPro order core: HTTP API and reconciliation tooling",
		Version: Version,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(outboxCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// core is the infrastructure every entrypoint shares.
func core() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
	)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API (and the outbox worker when OUTBOX_WORKER_ENABLED is set)",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				core(),
				server.Module,
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
