package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/smallbiznis/mutrapro/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/pkg/telemetry/correlation"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// MarkPaid is the only writer of the paid flag. It re-reads the request and
// writes paid=true only when needed, so repeating it converges.
func (s *Service) MarkPaid(ctx context.Context, requestID int64) error {
	request, err := s.store.GetServiceRequest(ctx, requestID)
	if err != nil {
		return err
	}
	if request == nil {
		return paymentdomain.ErrNotFound
	}
	if request.Paid {
		return nil
	}

	ok, err := s.store.MarkServiceRequestPaid(ctx, requestID)
	if err != nil {
		return err
	}
	if !ok {
		return paymentdomain.ErrNotFound
	}
	return nil
}

// EnsureTransaction appends the payment's ledger line unless one already
// covers it.
func (s *Service) EnsureTransaction(ctx context.Context, payment paymentdomain.Payment) error {
	items, err := s.store.ListTransactions(ctx, payment.CustomerID)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Covers(payment) {
			return nil
		}
	}

	paymentID := payment.ID
	requestID := payment.ServiceRequestID
	created, err := s.store.CreateTransaction(ctx, paymentdomain.TransactionRecord{
		CustomerID:       payment.CustomerID,
		Amount:           payment.Amount,
		Type:             paymentdomain.TransactionTypePayment,
		Description:      paymentdomain.PaymentDescription(requestID),
		PaymentID:        &paymentID,
		ServiceRequestID: &requestID,
	})
	if err != nil {
		return err
	}
	if created == nil {
		return paymentdomain.ErrNotFound
	}
	s.obsMetrics.RecordTransaction(ctx, string(paymentdomain.TransactionTypePayment))
	return nil
}

func (s *Service) recordDefect(ctx context.Context, kind paymentdomain.TaskKind, payment paymentdomain.Payment, cause error, log *zap.Logger) {
	s.reconcile.IncDefect(string(kind))
	log.Error("reconciliation defect",
		zap.String("step", string(kind)),
		zap.Int64("service_request_id", payment.ServiceRequestID),
		zap.Error(cause),
	)

	// the reconciliation budget may already be spent
	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.enqueue(bg, kind, payment, cause); err != nil {
		log.Error("failed to enqueue reconciliation task",
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	}
}

func (s *Service) enqueue(ctx context.Context, kind paymentdomain.TaskKind, payment paymentdomain.Payment, cause error) error {
	payload, err := json.Marshal(payment)
	if err != nil {
		return err
	}
	_, correlationID := correlation.EnsureCorrelationID(ctx)
	now := s.clock.Now().UTC()
	task := &paymentdomain.ReconciliationTask{
		ID:               s.genID.Generate(),
		Kind:             kind,
		PaymentID:        payment.ID,
		ServiceRequestID: payment.ServiceRequestID,
		CustomerID:       payment.CustomerID,
		Payload:          datatypes.JSON(payload),
		Status:           paymentdomain.TaskStatusPending,
		NextAttemptAt:    now,
		LastError:        errorText(cause),
		CorrelationID:    correlationID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	inserted, err := s.repo.Insert(ctx, s.db, task)
	if err != nil {
		return err
	}
	if inserted {
		s.log.Info("reconciliation task enqueued",
			zap.String("task_id", task.ID.String()),
			zap.String("kind", string(kind)),
			zap.Int64("payment_id", payment.ID),
		)
	}
	return nil
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return tracing.SafeError(err).Error()
}
