package migration

import (
	"fmt"
	"io/fs"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(embeddedMigrations, migrationsDir)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, entry := range entries {
		names[entry.Name()] = true
	}
	for _, base := range []string{"000001_reconciliation_tasks", "000002_idempotency_keys"} {
		assert.True(t, names[base+".up.sql"], base)
		assert.True(t, names[base+".down.sql"], base)
	}
}

func TestMigrateFallsBackToAutoMigrate(t *testing.T) {
	dsn := fmt.Sprintf("file:migration_%d?mode=memory&cache=shared", time.Now().UnixNano())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn))
	assert.True(t, conn.Migrator().HasTable("reconciliation_tasks"))
	assert.True(t, conn.Migrator().HasTable("idempotency_keys"))
	assert.True(t, conn.Migrator().HasIndex("reconciliation_tasks", "ux_reconciliation_tasks_kind_payment"))

	// running twice is a no-op
	require.NoError(t, Migrate(conn))
}
