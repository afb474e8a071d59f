package config

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// ReconcileConfig is the payment reconciliation retry policy. It is read
// from reconciliation.yml and reloaded when the file changes.
type ReconcileConfig struct {
	InlineAttempts    int           `mapstructure:"inlineAttempts"`
	InlineBackoff     time.Duration `mapstructure:"inlineBackoff"`
	MaxBackoff        time.Duration `mapstructure:"maxBackoff"`
	Timeout           time.Duration `mapstructure:"timeout"`
	OutboxInterval    time.Duration `mapstructure:"outboxInterval"`
	OutboxBatchSize   int           `mapstructure:"outboxBatchSize"`
	OutboxMaxAttempts int           `mapstructure:"outboxMaxAttempts"`
	LockTTL           time.Duration `mapstructure:"lockTTL"`
}

func DefaultReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		InlineAttempts:    3,
		InlineBackoff:     200 * time.Millisecond,
		MaxBackoff:        10 * time.Minute,
		Timeout:           30 * time.Second,
		OutboxInterval:    15 * time.Second,
		OutboxBatchSize:   25,
		OutboxMaxAttempts: 12,
		LockTTL:           30 * time.Second,
	}
}

// Backoff returns the delay before the given attempt (1-based), doubling
// from base and capped at MaxBackoff.
func (c ReconcileConfig) Backoff(base time.Duration, attempt int) time.Duration {
	if attempt <= 1 || base <= 0 {
		return base
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if c.MaxBackoff > 0 && delay >= c.MaxBackoff {
			return c.MaxBackoff
		}
	}
	return delay
}

type ReconcileConfigHolder struct {
	current atomic.Value // holds ReconcileConfig
}

// NewStaticReconcileConfigHolder returns a holder that never reloads.
func NewStaticReconcileConfigHolder(cfg ReconcileConfig) *ReconcileConfigHolder {
	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewReconcileConfigHolder(log *zap.Logger) (*ReconcileConfigHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.reconcile")

	v := viper.New()
	v.SetConfigName("reconciliation")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/mutrapro")
	v.AddConfigPath(".")

	v.SetEnvPrefix("MUTRAPRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultReconcileConfig()
	v.SetDefault("reconciliation.inlineAttempts", defaults.InlineAttempts)
	v.SetDefault("reconciliation.inlineBackoff", defaults.InlineBackoff)
	v.SetDefault("reconciliation.maxBackoff", defaults.MaxBackoff)
	v.SetDefault("reconciliation.timeout", defaults.Timeout)
	v.SetDefault("reconciliation.outboxInterval", defaults.OutboxInterval)
	v.SetDefault("reconciliation.outboxBatchSize", defaults.OutboxBatchSize)
	v.SetDefault("reconciliation.outboxMaxAttempts", defaults.OutboxMaxAttempts)
	v.SetDefault("reconciliation.lockTTL", defaults.LockTTL)

	fileFound := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		fileFound = false
	}

	cfg, err := decodeReconcileConfig(v)
	if err != nil {
		return nil, err
	}
	if err := validateReconcileConfig(cfg); err != nil {
		return nil, err
	}

	holder := &ReconcileConfigHolder{}
	holder.current.Store(cfg)

	if !fileFound {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decodeReconcileConfig(v)
		if err != nil {
			log.Warn("reconciliation config reload failed", zap.Error(err))
			return
		}
		if err := validateReconcileConfig(updated); err != nil {
			log.Warn("invalid reconciliation config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("reconciliation config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *ReconcileConfigHolder) Get() ReconcileConfig {
	if h == nil {
		return DefaultReconcileConfig()
	}
	cfg, ok := h.current.Load().(ReconcileConfig)
	if !ok {
		return DefaultReconcileConfig()
	}
	return cfg
}

// decodeReconcileConfig unmarshals the full settings tree so that keys
// missing from the file fall back to their registered defaults.
func decodeReconcileConfig(v *viper.Viper) (ReconcileConfig, error) {
	var file struct {
		Reconciliation ReconcileConfig `mapstructure:"reconciliation"`
	}
	if err := v.Unmarshal(&file); err != nil {
		return ReconcileConfig{}, err
	}
	return file.Reconciliation, nil
}

func validateReconcileConfig(cfg ReconcileConfig) error {
	if cfg.InlineAttempts < 1 {
		return fmt.Errorf("inlineAttempts must be >= 1, got %d", cfg.InlineAttempts)
	}
	if cfg.InlineBackoff < 0 {
		return errors.New("inlineBackoff must not be negative")
	}
	if cfg.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if cfg.OutboxInterval <= 0 {
		return errors.New("outboxInterval must be positive")
	}
	if cfg.OutboxBatchSize < 1 {
		return errors.New("outboxBatchSize must be >= 1")
	}
	if cfg.OutboxMaxAttempts < 1 {
		return errors.New("outboxMaxAttempts must be >= 1")
	}
	return nil
}
