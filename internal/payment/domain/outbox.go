package domain

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type TaskKind string

const (
	TaskKindMarkPaid          TaskKind = "mark_paid"
	TaskKindAppendTransaction TaskKind = "append_transaction"
)

type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusDead    TaskStatus = "dead"
)

func ParseTaskStatus(value string) (TaskStatus, error) {
	switch TaskStatus(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return "", nil
	case TaskStatusPending:
		return TaskStatusPending, nil
	case TaskStatusDone:
		return TaskStatusDone, nil
	case TaskStatusDead:
		return TaskStatusDead, nil
	default:
		return "", ErrInvalidTaskStatus
	}
}

// ReconciliationTask is a durable follow-up for a payment whose paid flag or
// transaction could not be written inline. (kind, payment_id) is unique.
type ReconciliationTask struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	Kind             TaskKind       `json:"kind" gorm:"type:varchar(32);not null;uniqueIndex:ux_reconciliation_tasks_kind_payment"`
	PaymentID        int64          `json:"payment_id" gorm:"not null;uniqueIndex:ux_reconciliation_tasks_kind_payment"`
	ServiceRequestID int64          `json:"service_request_id" gorm:"not null;index"`
	CustomerID       int64          `json:"customer_id" gorm:"not null"`
	Payload          datatypes.JSON `json:"payload" gorm:"not null"`
	Status           TaskStatus     `json:"status" gorm:"type:varchar(16);not null;index:ix_reconciliation_tasks_due,priority:1"`
	Attempts         int            `json:"attempts" gorm:"not null;default:0"`
	NextAttemptAt    time.Time      `json:"next_attempt_at" gorm:"not null;index:ix_reconciliation_tasks_due,priority:2"`
	LastError        string         `json:"last_error,omitempty" gorm:"type:text"`
	CorrelationID    string         `json:"correlation_id" gorm:"type:varchar(128)"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null"`
}

func (ReconciliationTask) TableName() string { return "reconciliation_tasks" }

type ListTaskFilter struct {
	Status TaskStatus
	Kind   TaskKind
	Limit  int
}

// TaskRepository persists reconciliation tasks in the operational database.
type TaskRepository interface {
	// Insert returns inserted=false when a task for the same kind and
	// payment already exists.
	Insert(ctx context.Context, db *gorm.DB, task *ReconciliationTask) (bool, error)
	// ClaimDue leases up to limit pending tasks whose next attempt is due by
	// pushing their next attempt past lease.
	ClaimDue(ctx context.Context, db *gorm.DB, now time.Time, lease time.Duration, limit int) ([]*ReconciliationTask, error)
	MarkDone(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, now time.Time) error
	MarkRetry(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error
	MarkDead(ctx context.Context, db *gorm.DB, id snowflake.ID, attempts int, lastErr string, now time.Time) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*ReconciliationTask, error)
	List(ctx context.Context, db *gorm.DB, filter ListTaskFilter) ([]*ReconciliationTask, error)
	CountByStatus(ctx context.Context, db *gorm.DB) (map[TaskStatus]int64, error)
	// Requeue moves a dead task back to pending with a fresh attempt budget.
	Requeue(ctx context.Context, db *gorm.DB, id snowflake.ID, now time.Time) (bool, error)
}
