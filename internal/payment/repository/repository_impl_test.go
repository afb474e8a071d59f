package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/mutrapro/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func setupTaskDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:tasks_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&domain.ReconciliationTask{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTask(node *snowflake.Node, kind domain.TaskKind, paymentID int64, due time.Time) *domain.ReconciliationTask {
	return &domain.ReconciliationTask{
		ID:               node.Generate(),
		Kind:             kind,
		PaymentID:        paymentID,
		ServiceRequestID: 7,
		CustomerID:       3,
		Payload:          datatypes.JSON(`{"amount":"150.00"}`),
		Status:           domain.TaskStatusPending,
		NextAttemptAt:    due,
		CorrelationID:    "req-1",
		CreatedAt:        due,
		UpdatedAt:        due,
	}
}

func TestInsertIsUniquePerKindAndPayment(t *testing.T) {
	conn := setupTaskDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	inserted, err := repo.Insert(ctx, conn, newTask(node, domain.TaskKindMarkPaid, 42, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = repo.Insert(ctx, conn, newTask(node, domain.TaskKindMarkPaid, 42, now))
	require.NoError(t, err)
	assert.False(t, inserted)

	inserted, err = repo.Insert(ctx, conn, newTask(node, domain.TaskKindAppendTransaction, 42, now))
	require.NoError(t, err)
	assert.True(t, inserted)

	var count int64
	require.NoError(t, conn.Model(&domain.ReconciliationTask{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)
}

func TestClaimDueLeasesOnlyDueTasks(t *testing.T) {
	conn := setupTaskDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	due := newTask(node, domain.TaskKindMarkPaid, 1, now.Add(-time.Minute))
	later := newTask(node, domain.TaskKindMarkPaid, 2, now.Add(time.Hour))
	_, err := repo.Insert(ctx, conn, due)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, conn, later)
	require.NoError(t, err)

	claimed, err := repo.ClaimDue(ctx, conn, now, 30*time.Second, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, due.ID, claimed[0].ID)
	assert.True(t, claimed[0].NextAttemptAt.Equal(now.Add(30*time.Second)))

	// leased tasks are not handed out twice
	again, err := repo.ClaimDue(ctx, conn, now, 30*time.Second, 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestMarkTransitionsAndCounts(t *testing.T) {
	conn := setupTaskDB(t)
	repo := Provide()
	node, _ := snowflake.NewNode(1)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	ctx := context.Background()

	a := newTask(node, domain.TaskKindMarkPaid, 1, now)
	b := newTask(node, domain.TaskKindMarkPaid, 2, now)
	c := newTask(node, domain.TaskKindAppendTransaction, 3, now)
	for _, task := range []*domain.ReconciliationTask{a, b, c} {
		_, err := repo.Insert(ctx, conn, task)
		require.NoError(t, err)
	}

	require.NoError(t, repo.MarkDone(ctx, conn, a.ID, 1, now))
	require.NoError(t, repo.MarkDead(ctx, conn, b.ID, 12, "upstream_503", now))
	require.NoError(t, repo.MarkRetry(ctx, conn, c.ID, 2, now.Add(time.Minute), "timeout", now))

	counts, err := repo.CountByStatus(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.TaskStatusDone])
	assert.Equal(t, int64(1), counts[domain.TaskStatusDead])
	assert.Equal(t, int64(1), counts[domain.TaskStatusPending])

	retried, err := repo.FindByID(ctx, conn, c.ID)
	require.NoError(t, err)
	require.NotNil(t, retried)
	assert.Equal(t, 2, retried.Attempts)
	assert.Equal(t, "timeout", retried.LastError)

	dead, err := repo.List(ctx, conn, domain.ListTaskFilter{Status: domain.TaskStatusDead})
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, b.ID, dead[0].ID)

	ok, err := repo.Requeue(ctx, conn, b.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Requeue(ctx, conn, a.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	missing, err := repo.FindByID(ctx, conn, node.Generate())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
