package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/config"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/pkg/telemetry/correlation"
	"go.uber.org/zap"
)

// ProcessDue claims due reconciliation tasks and runs each once. Failures
// are rescheduled with backoff until the attempt ceiling marks them dead.
func (s *Service) ProcessDue(ctx context.Context) (int, error) {
	cfg := s.cfg.Get()
	tasks, err := s.repo.ClaimDue(ctx, s.db, s.clock.Now().UTC(), cfg.LockTTL, cfg.OutboxBatchSize)
	if err != nil {
		return 0, err
	}

	var errs error
	processed := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			break
		}
		errs = errors.Join(errs, s.processTask(ctx, cfg, task))
		processed++
	}

	s.refreshBacklog(ctx)
	return processed, errs
}

func (s *Service) processTask(ctx context.Context, cfg config.ReconcileConfig, task *paymentdomain.ReconciliationTask) error {
	ctx = correlation.ContextWithCorrelationID(ctx, task.CorrelationID)
	ctx, _ = correlation.EnsureCorrelationID(ctx)
	log := s.log.With(
		zap.String("task_id", task.ID.String()),
		zap.String("kind", string(task.Kind)),
		zap.Int64("payment_id", task.PaymentID),
		zap.Int64("service_request_id", task.ServiceRequestID),
		zap.String("correlation_id", task.CorrelationID),
	)

	token, ok, err := s.limiter.TryLockRequest(ctx, task.ServiceRequestID, cfg.LockTTL)
	if err != nil {
		log.Warn("reconciliation lock unavailable", zap.Error(err))
		return err
	}
	if !ok {
		// another replica holds the request, the claim lease hands the task back later
		return nil
	}
	defer func() {
		if err := s.limiter.ReleaseRequest(context.WithoutCancel(ctx), task.ServiceRequestID, token); err != nil {
			log.Warn("failed to release reconciliation lock", zap.Error(err))
		}
	}()

	attempts := task.Attempts + 1
	runErr := s.runTask(ctx, task)
	now := s.clock.Now().UTC()
	kind := string(task.Kind)

	switch {
	case runErr == nil:
		s.reconcile.IncOutboxAttempt(kind, obsmetrics.OutcomeSuccess)
		log.Info("reconciliation task done", zap.Int("attempts", attempts))
		return s.repo.MarkDone(ctx, s.db, task.ID, attempts, now)
	case attempts >= cfg.OutboxMaxAttempts:
		s.reconcile.IncOutboxAttempt(kind, obsmetrics.OutcomeDead)
		s.reconcile.IncOutboxDead(kind)
		log.Error("reconciliation task dead", zap.Int("attempts", attempts), zap.Error(runErr))
		return s.repo.MarkDead(ctx, s.db, task.ID, attempts, errorText(runErr), now)
	default:
		next := now.Add(cfg.Backoff(cfg.OutboxInterval, attempts))
		s.reconcile.IncOutboxAttempt(kind, obsmetrics.OutcomeRetry)
		log.Warn("reconciliation task failed, retrying",
			zap.Int("attempts", attempts),
			zap.Time("next_attempt_at", next),
			zap.Error(runErr),
		)
		return s.repo.MarkRetry(ctx, s.db, task.ID, attempts, next, errorText(runErr), now)
	}
}

func (s *Service) runTask(ctx context.Context, task *paymentdomain.ReconciliationTask) error {
	switch task.Kind {
	case paymentdomain.TaskKindMarkPaid:
		return s.MarkPaid(ctx, task.ServiceRequestID)
	case paymentdomain.TaskKindAppendTransaction:
		var payment paymentdomain.Payment
		if err := json.Unmarshal(task.Payload, &payment); err != nil {
			return fmt.Errorf("decode task payload: %w", err)
		}
		return s.EnsureTransaction(ctx, payment)
	default:
		return fmt.Errorf("unknown reconciliation task kind %q", task.Kind)
	}
}

// refreshBacklog publishes the task counts per status.
func (s *Service) refreshBacklog(ctx context.Context) {
	counts, err := s.repo.CountByStatus(ctx, s.db)
	if err != nil {
		s.log.Warn("failed to count reconciliation tasks", zap.Error(err))
		return
	}
	for status, count := range counts {
		s.reconcile.SetOutboxBacklog(string(status), count)
	}
}

func (s *Service) ListTasks(ctx context.Context, filter paymentdomain.ListTaskFilter) ([]*paymentdomain.ReconciliationTask, error) {
	return s.repo.List(ctx, s.db, filter)
}

// RequeueTask gives a dead task a fresh attempt budget.
func (s *Service) RequeueTask(ctx context.Context, id snowflake.ID) error {
	ok, err := s.repo.Requeue(ctx, s.db, id, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !ok {
		return paymentdomain.ErrNotFound
	}
	s.log.Info("reconciliation task requeued", zap.String("task_id", id.String()))
	return nil
}
