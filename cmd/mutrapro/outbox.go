package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	"github.com/smallbiznis/mutrapro/internal/payment"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/ratelimit"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const outboxStartTimeout = 30 * time.Second

func outboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outbox",
		Short: "Inspect and drive the payment reconciliation outbox",
	}
	cmd.AddCommand(outboxListCmd())
	cmd.AddCommand(outboxDrainCmd())
	cmd.AddCommand(outboxRequeueCmd())
	return cmd
}

// withTasks starts just enough of the application to reach the outbox.
func withTasks(ctx context.Context, fn func(context.Context, paymentdomain.TaskService) error) error {
	var tasks paymentdomain.TaskService
	app := fx.New(
		core(),
		recordstore.Module,
		idempotency.Module,
		ratelimit.Module,
		payment.Module,
		fx.Populate(&tasks),
		fx.NopLogger,
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, outboxStartTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), outboxStartTimeout)
		defer cancel()
		_ = app.Stop(stopCtx)
	}()

	return fn(ctx, tasks)
}

func outboxListCmd() *cobra.Command {
	var (
		status string
		kind   string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reconciliation tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			taskStatus, err := paymentdomain.ParseTaskStatus(status)
			if err != nil {
				return fmt.Errorf("invalid --status %q", status)
			}
			return withTasks(cmd.Context(), func(ctx context.Context, svc paymentdomain.TaskService) error {
				items, err := svc.ListTasks(ctx, paymentdomain.ListTaskFilter{
					Status: taskStatus,
					Kind:   paymentdomain.TaskKind(strings.TrimSpace(kind)),
					Limit:  limit,
				})
				if err != nil {
					return err
				}
				renderTasks(items)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter (pending, done, dead)")
	cmd.Flags().StringVar(&kind, "kind", "", "kind filter (mark_paid, append_transaction)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum rows")
	return cmd
}

func renderTasks(items []*paymentdomain.ReconciliationTask) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Kind", "Payment", "Request", "Status", "Attempts", "Next attempt", "Last error"})
	for _, t := range items {
		tw.AppendRow(table.Row{
			t.ID.String(),
			t.Kind,
			t.PaymentID,
			t.ServiceRequestID,
			t.Status,
			t.Attempts,
			t.NextAttemptAt.Format(time.RFC3339),
			truncate(t.LastError, 60),
		})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "", "", "Total", len(items)})
	tw.Render()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func outboxDrainCmd() *cobra.Command {
	var maxPasses int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Run outbox passes until nothing due remains",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTasks(cmd.Context(), func(ctx context.Context, svc paymentdomain.TaskService) error {
				total := 0
				for pass := 0; pass < maxPasses; pass++ {
					n, err := svc.ProcessDue(ctx)
					if err != nil {
						return err
					}
					total += n
					if n == 0 {
						break
					}
				}
				fmt.Printf("processed %d task(s)\n", total)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&maxPasses, "max-passes", 10, "upper bound on outbox passes")
	return cmd
}

func outboxRequeueCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue [task-id]",
		Short: "Move a dead task back to pending",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := snowflake.ParseString(strings.TrimSpace(args[0]))
			if err != nil {
				return fmt.Errorf("invalid task id %q", args[0])
			}
			return withTasks(cmd.Context(), func(ctx context.Context, svc paymentdomain.TaskService) error {
				if err := svc.RequeueTask(ctx, id); err != nil {
					return err
				}
				fmt.Printf("task %s requeued\n", id)
				return nil
			})
		},
	}
}
