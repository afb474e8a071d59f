package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/smallbiznis/mutrapro/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.TaskRepository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, task *domain.ReconciliationTask) (bool, error) {
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "kind"}, {Name: "payment_id"}},
			DoNothing: true,
		}).
		Create(task)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) ClaimDue(ctx context.Context, conn *gorm.DB, now time.Time, lease time.Duration, limit int) ([]*domain.ReconciliationTask, error) {
	if limit <= 0 {
		return nil, nil
	}

	var claimed []*domain.ReconciliationTask
	err := conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&domain.ReconciliationTask{}).
			Where("status = ? AND next_attempt_at <= ?", domain.TaskStatusPending, now).
			Order("next_attempt_at ASC").
			Order("id ASC").
			Limit(limit)
		if db.IsPostgres(tx) {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var due []*domain.ReconciliationTask
		if err := query.Find(&due).Error; err != nil {
			return err
		}
		if len(due) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(due))
		for _, task := range due {
			ids = append(ids, task.ID)
		}
		leaseUntil := now.Add(lease)
		if err := tx.Model(&domain.ReconciliationTask{}).
			Where("id IN ? AND status = ?", ids, domain.TaskStatusPending).
			Updates(map[string]any{
				"next_attempt_at": leaseUntil,
				"updated_at":      now,
			}).Error; err != nil {
			return err
		}
		for _, task := range due {
			task.NextAttemptAt = leaseUntil
			task.UpdatedAt = now
		}
		claimed = due
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *repo) MarkDone(ctx context.Context, conn *gorm.DB, id snowflake.ID, attempts int, now time.Time) error {
	return conn.WithContext(ctx).Model(&domain.ReconciliationTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.TaskStatusDone,
			"attempts":   attempts,
			"last_error": "",
			"updated_at": now,
		}).Error
}

func (r *repo) MarkRetry(ctx context.Context, conn *gorm.DB, id snowflake.ID, attempts int, nextAttemptAt time.Time, lastErr string, now time.Time) error {
	return conn.WithContext(ctx).Model(&domain.ReconciliationTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"attempts":        attempts,
			"next_attempt_at": nextAttemptAt,
			"last_error":      lastErr,
			"updated_at":      now,
		}).Error
}

func (r *repo) MarkDead(ctx context.Context, conn *gorm.DB, id snowflake.ID, attempts int, lastErr string, now time.Time) error {
	return conn.WithContext(ctx).Model(&domain.ReconciliationTask{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     domain.TaskStatusDead,
			"attempts":   attempts,
			"last_error": lastErr,
			"updated_at": now,
		}).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.ReconciliationTask, error) {
	var task domain.ReconciliationTask
	err := conn.WithContext(ctx).Where("id = ?", id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListTaskFilter) ([]*domain.ReconciliationTask, error) {
	query := conn.WithContext(ctx).Model(&domain.ReconciliationTask{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var tasks []*domain.ReconciliationTask
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *repo) CountByStatus(ctx context.Context, conn *gorm.DB) (map[domain.TaskStatus]int64, error) {
	type row struct {
		Status domain.TaskStatus
		Total  int64
	}
	var rows []row
	err := conn.WithContext(ctx).Model(&domain.ReconciliationTask{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := map[domain.TaskStatus]int64{
		domain.TaskStatusPending: 0,
		domain.TaskStatusDone:    0,
		domain.TaskStatusDead:    0,
	}
	for _, item := range rows {
		counts[item.Status] = item.Total
	}
	return counts, nil
}

func (r *repo) Requeue(ctx context.Context, conn *gorm.DB, id snowflake.ID, now time.Time) (bool, error) {
	res := conn.WithContext(ctx).Model(&domain.ReconciliationTask{}).
		Where("id = ? AND status = ?", id, domain.TaskStatusDead).
		Updates(map[string]any{
			"status":          domain.TaskStatusPending,
			"attempts":        0,
			"next_attempt_at": now,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
