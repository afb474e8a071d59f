package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/mutrapro/internal/clock"
	"github.com/smallbiznis/mutrapro/internal/config"
	"github.com/smallbiznis/mutrapro/internal/idempotency"
	obslogger "github.com/smallbiznis/mutrapro/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/mutrapro/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/internal/ratelimit"
	"github.com/smallbiznis/mutrapro/internal/recordstore"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const idempotencyScope = "payments"

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Store       paymentdomain.RecordStore
	Repo        paymentdomain.TaskRepository
	Config      *config.ReconcileConfigHolder
	Idempotency *idempotency.Store           `optional:"true"`
	Limiter     *ratelimit.PaymentLimiter    `optional:"true"`
	ObsMetrics  *obsmetrics.Metrics          `optional:"true"`
	Reconcile   *obsmetrics.ReconcileMetrics `optional:"true"`
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	clock       clock.Clock
	store       paymentdomain.RecordStore
	repo        paymentdomain.TaskRepository
	cfg         *config.ReconcileConfigHolder
	idempotency *idempotency.Store
	limiter     *ratelimit.PaymentLimiter
	obsMetrics  *obsmetrics.Metrics
	reconcile   *obsmetrics.ReconcileMetrics
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewService(p Params) *Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("payment.service"),
		genID:       p.GenID,
		clock:       p.Clock,
		store:       p.Store,
		repo:        p.Repo,
		cfg:         p.Config,
		idempotency: p.Idempotency,
		limiter:     p.Limiter,
		obsMetrics:  p.ObsMetrics,
		reconcile:   p.Reconcile,
		sleep:       sleepContext,
	}
}

type fingerprintPayload struct {
	CustomerID       int64  `json:"customer_id"`
	ServiceRequestID int64  `json:"service_request_id"`
	Amount           string `json:"amount"`
	Method           string `json:"method"`
}

// CreatePayment records a payment and then drives the request's paid flag and
// ledger line towards consistency. Once the payment exists upstream the call
// succeeds; later failures are reconciliation defects handled by the outbox.
func (s *Service) CreatePayment(ctx context.Context, req paymentdomain.CreatePaymentRequest) (*paymentdomain.Payment, error) {
	rec, err := validateCreate(req)
	if err != nil {
		return nil, err
	}

	if err := s.allow(ctx, rec.CustomerID); err != nil {
		return nil, err
	}

	key := rec.IdempotencyKey
	if key != "" && s.idempotency != nil {
		fingerprint, err := idempotency.Fingerprint(fingerprintPayload{
			CustomerID:       rec.CustomerID,
			ServiceRequestID: rec.ServiceRequestID,
			Amount:           rec.Amount.String(),
			Method:           string(rec.Method),
		})
		if err != nil {
			return nil, err
		}
		record, replay, err := s.idempotency.Begin(ctx, idempotencyScope, key, fingerprint)
		if err != nil {
			return nil, err
		}
		if replay {
			var stored paymentdomain.Payment
			if err := record.Decode(&stored); err != nil {
				return nil, err
			}
			return &stored, nil
		}
	}

	payment, unknown, err := s.createPayment(ctx, rec)
	if key != "" && s.idempotency != nil {
		bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		switch {
		case err != nil && unknown:
			// the payment may exist upstream; a retry must not create another
			if markErr := s.idempotency.MarkUnknown(bg, idempotencyScope, key); markErr != nil {
				s.log.Error("failed to pin idempotency key", zap.Error(markErr))
			}
		case err != nil:
			if releaseErr := s.idempotency.Release(bg, idempotencyScope, key); releaseErr != nil {
				s.log.Warn("failed to release idempotency key", zap.Error(releaseErr))
			}
		default:
			if completeErr := s.idempotency.Complete(bg, idempotencyScope, key, payment); completeErr != nil {
				s.log.Warn("failed to store idempotent response", zap.Error(completeErr))
			}
		}
	}
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// createPayment reports unknown=true when the create call failed in a way that
// leaves open whether the record store stored the payment.
func (s *Service) createPayment(ctx context.Context, rec paymentdomain.PaymentRecord) (*paymentdomain.Payment, bool, error) {
	log := obslogger.WithContext(ctx, s.log).With(
		zap.Int64("service_request_id", rec.ServiceRequestID),
		zap.String("method", string(rec.Method)),
	)

	request, err := s.store.GetServiceRequest(ctx, rec.ServiceRequestID)
	if err != nil {
		return nil, false, err
	}
	if request == nil || request.CustomerID != rec.CustomerID {
		return nil, false, paymentdomain.ErrNotFound
	}
	if request.Paid {
		return nil, false, paymentdomain.ErrAlreadyPaid
	}

	payment, err := s.store.CreatePayment(ctx, rec)
	if err != nil {
		s.obsMetrics.RecordPayment(ctx, string(rec.Method), obsmetrics.OutcomeError)
		if rejected(err) {
			log.Warn("payment create rejected", zap.Error(err))
			return nil, false, err
		}
		log.Error("payment outcome unknown", zap.Error(err))
		return nil, true, err
	}
	if payment == nil {
		return nil, false, paymentdomain.ErrNotFound
	}
	normalizePayment(payment, rec, s.clock.Now())
	s.obsMetrics.RecordPayment(ctx, string(rec.Method), obsmetrics.OutcomeSuccess)
	log.Info("payment created", zap.Int64("payment_id", payment.ID))

	// the payment exists upstream, so follow-up work must not be cut short by
	// the caller going away
	cfg := s.cfg.Get()
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Timeout)
	defer cancel()
	s.reconcilePayment(rctx, cfg, *payment, log)

	return payment, false, nil
}

// rejected reports whether the record store answered with a definite refusal,
// so nothing was stored. Timeouts, cancellations, transport failures and 5xx
// answers leave the outcome open.
func rejected(err error) bool {
	upstream, ok := recordstore.AsUpstreamError(err)
	return ok && upstream.Rejected()
}

func (s *Service) reconcilePayment(ctx context.Context, cfg config.ReconcileConfig, payment paymentdomain.Payment, log *zap.Logger) {
	log = log.With(zap.Int64("payment_id", payment.ID))

	markErr := s.retryInline(ctx, cfg, string(paymentdomain.TaskKindMarkPaid), func(ctx context.Context) error {
		return s.MarkPaid(ctx, payment.ServiceRequestID)
	})
	if markErr != nil {
		s.recordDefect(ctx, paymentdomain.TaskKindMarkPaid, payment, markErr, log)
	}

	if err := s.EnsureTransaction(ctx, payment); err != nil {
		s.recordDefect(ctx, paymentdomain.TaskKindAppendTransaction, payment, err, log)
	}
}

func (s *Service) retryInline(ctx context.Context, cfg config.ReconcileConfig, step string, fn func(context.Context) error) error {
	attempts := cfg.InlineAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, paymentdomain.ErrNotFound) || attempt == attempts {
			break
		}
		s.reconcile.IncInlineRetry(step)
		if waitErr := s.sleep(ctx, cfg.Backoff(cfg.InlineBackoff, attempt)); waitErr != nil {
			return errors.Join(err, waitErr)
		}
	}
	return err
}

func (s *Service) allow(ctx context.Context, customerID int64) error {
	if !s.limiter.Enabled() {
		return nil
	}
	res, err := s.limiter.AllowCustomer(ctx, strconv.FormatInt(customerID, 10))
	if err != nil {
		s.log.Warn("payment rate limiter unavailable", zap.Error(err))
		return nil
	}
	if !res.Allowed {
		return paymentdomain.ErrRateLimited
	}
	return nil
}

func (s *Service) ListTransactions(ctx context.Context, customerID int64) ([]paymentdomain.Transaction, error) {
	if customerID <= 0 {
		return nil, paymentdomain.ErrInvalidCustomer
	}
	return s.store.ListTransactions(ctx, customerID)
}

func (s *Service) GetTransaction(ctx context.Context, customerID, transactionID int64) (*paymentdomain.Transaction, error) {
	if transactionID <= 0 {
		return nil, paymentdomain.ErrInvalidTransaction
	}
	items, err := s.ListTransactions(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		if items[i].ID == transactionID {
			return &items[i], nil
		}
	}
	return nil, paymentdomain.ErrNotFound
}

func validateCreate(req paymentdomain.CreatePaymentRequest) (paymentdomain.PaymentRecord, error) {
	if req.CustomerID <= 0 {
		return paymentdomain.PaymentRecord{}, paymentdomain.ErrInvalidCustomer
	}
	if req.ServiceRequestID <= 0 {
		return paymentdomain.PaymentRecord{}, paymentdomain.ErrInvalidServiceRequest
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil || !amount.IsPositive() {
		return paymentdomain.PaymentRecord{}, paymentdomain.ErrInvalidAmount
	}
	method, err := paymentdomain.ParseMethod(req.Method)
	if err != nil {
		return paymentdomain.PaymentRecord{}, err
	}
	return paymentdomain.PaymentRecord{
		CustomerID:       req.CustomerID,
		ServiceRequestID: req.ServiceRequestID,
		Amount:           amount,
		Method:           method,
		IdempotencyKey:   strings.TrimSpace(req.IdempotencyKey),
	}, nil
}

// normalizePayment fills fields the record store may omit. A returned
// payment is always reported as completed.
func normalizePayment(payment *paymentdomain.Payment, rec paymentdomain.PaymentRecord, now time.Time) {
	if payment.CustomerID == 0 {
		payment.CustomerID = rec.CustomerID
	}
	if payment.ServiceRequestID == 0 {
		payment.ServiceRequestID = rec.ServiceRequestID
	}
	if payment.Amount.IsZero() {
		payment.Amount = rec.Amount
	}
	if payment.Method == "" {
		payment.Method = rec.Method
	}
	if payment.PaidAt.IsZero() {
		payment.PaidAt = now.UTC()
	}
	payment.Status = paymentdomain.StatusCompleted
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
