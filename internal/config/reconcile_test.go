package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestReconcileBackoffDoublesAndCaps(t *testing.T) {
	cfg := DefaultReconcileConfig()
	cfg.MaxBackoff = time.Second

	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(100*time.Millisecond, 1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(100*time.Millisecond, 2))
	assert.Equal(t, 400*time.Millisecond, cfg.Backoff(100*time.Millisecond, 3))
	assert.Equal(t, time.Second, cfg.Backoff(100*time.Millisecond, 10))
}

func TestValidateReconcileConfig(t *testing.T) {
	require.NoError(t, validateReconcileConfig(DefaultReconcileConfig()))

	bad := DefaultReconcileConfig()
	bad.InlineAttempts = 0
	assert.Error(t, validateReconcileConfig(bad))

	bad = DefaultReconcileConfig()
	bad.OutboxBatchSize = 0
	assert.Error(t, validateReconcileConfig(bad))
}

func TestNewReconcileConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("reconciliation:\n  inlineAttempts: 5\n  inlineBackoff: 50ms\n  outboxMaxAttempts: 3\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "reconciliation.yml"), content, 0o600))

	t.Chdir(dir)

	holder, err := NewReconcileConfigHolder(zap.NewNop())
	require.NoError(t, err)

	cfg := holder.Get()
	assert.Equal(t, 5, cfg.InlineAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.InlineBackoff)
	assert.Equal(t, 3, cfg.OutboxMaxAttempts)
	assert.Equal(t, DefaultReconcileConfig().OutboxBatchSize, cfg.OutboxBatchSize)
}

func TestLoadReadsRecordStoreSettings(t *testing.T) {
	t.Setenv("RECORD_STORE_URL", "http://records.local/api/Customer/")
	t.Setenv("RECORD_STORE_TIMEOUT", "3")
	t.Setenv("LEGACY_EMPTY_LIST_404", "true")

	cfg := Load()
	assert.Equal(t, "http://records.local/api/Customer", cfg.RecordStore.BaseURL)
	assert.Equal(t, 3*time.Second, cfg.RecordStore.Timeout)
	assert.True(t, cfg.LegacyEmptyList404)
}
