package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	srdomain "github.com/smallbiznis/mutrapro/internal/servicerequest/domain"
)

type PaymentRecord struct {
	CustomerID       int64
	ServiceRequestID int64
	Amount           decimal.Decimal
	Method           Method
	IdempotencyKey   string
}

type TransactionRecord struct {
	CustomerID       int64
	Amount           decimal.Decimal
	Type             TransactionType
	Description      string
	PaymentID        *int64
	ServiceRequestID *int64
}

// RecordStore is the subset of the record store client the coordinator
// needs. Lookups return nil (or false) with a nil error when absent.
type RecordStore interface {
	GetServiceRequest(ctx context.Context, id int64) (*srdomain.ServiceRequest, error)
	MarkServiceRequestPaid(ctx context.Context, id int64) (bool, error)
	CreatePayment(ctx context.Context, rec PaymentRecord) (*Payment, error)
	CreateTransaction(ctx context.Context, rec TransactionRecord) (*Transaction, error)
	ListTransactions(ctx context.Context, customerID int64) ([]Transaction, error)
}

type CreatePaymentRequest struct {
	CustomerID       int64
	ServiceRequestID int64
	Amount           string
	Method           string
	IdempotencyKey   string
}

type Service interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (*Payment, error)
	ListTransactions(ctx context.Context, customerID int64) ([]Transaction, error)
	GetTransaction(ctx context.Context, customerID, transactionID int64) (*Transaction, error)
}

// Reconciler holds the idempotent follow-up primitives shared by the
// coordinator and the outbox worker.
type Reconciler interface {
	MarkPaid(ctx context.Context, requestID int64) error
	EnsureTransaction(ctx context.Context, payment Payment) error
}

type TaskService interface {
	ListTasks(ctx context.Context, filter ListTaskFilter) ([]*ReconciliationTask, error)
	RequeueTask(ctx context.Context, id snowflake.ID) error
	// ProcessDue runs one outbox pass and reports how many tasks it handled.
	ProcessDue(ctx context.Context) (int, error)
}
