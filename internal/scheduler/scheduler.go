package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/clock"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const jobReconcileOutbox = "reconcile_outbox"

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log     *zap.Logger
	Tasks   paymentdomain.TaskService
	GenID   *snowflake.Node
	Clock   clock.Clock
	Config  Config                       `optional:"true"`
	Metrics *obsmetrics.ReconcileMetrics `optional:"true"`
}

// Scheduler drives the reconciliation outbox on a fixed interval.
type Scheduler struct {
	log     *zap.Logger
	cfg     Config
	genID   *snowflake.Node
	clock   clock.Clock
	tasks   paymentdomain.TaskService
	metrics *obsmetrics.ReconcileMetrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.Tasks == nil || p.GenID == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:     p.Log.Named("scheduler").With(zap.String("component", "outbox")),
		cfg:     p.Config.withDefaults(),
		genID:   p.GenID,
		clock:   p.Clock,
		tasks:   p.Tasks,
		metrics: p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	timeout time.Duration,
	fn func(ctx context.Context) (int, error),
) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	run := s.newJobRun(name)
	s.logJobStart(ctx, run)

	processed, err := fn(ctx)
	run.AddProcessed(processed)
	s.metrics.ObserveRunDuration(s.clock.Now().Sub(start))
	if err != nil {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return nil
	}

	// a deadline is a soft timeout, the next pass picks up the rest
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.IncRunTimeout()
		s.log.Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	return fmt.Errorf("%s: %w", name, err)
}

// RunOnce executes one pass of every enabled job.
func (s *Scheduler) RunOnce(parent context.Context) error {
	if !s.isJobEnabled(jobReconcileOutbox) {
		return nil
	}
	return s.runJob(parent, jobReconcileOutbox, s.cfg.JobTimeout, s.tasks.ProcessDue)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}
