package scheduler

import (
	"time"

	"github.com/smallbiznis/mutrapro/internal/config"
)

// Config controls the outbox worker loop.
type Config struct {
	RunInterval time.Duration
	JobTimeout  time.Duration
	EnabledJobs []string
}

func DefaultConfig() Config {
	return Config{
		RunInterval: 15 * time.Second,
		JobTimeout:  30 * time.Second,
	}
}

// ProvideConfig derives the loop settings from the reconciliation policy.
func ProvideConfig(holder *config.ReconcileConfigHolder) Config {
	rc := holder.Get()
	return Config{
		RunInterval: rc.OutboxInterval,
		JobTimeout:  rc.Timeout,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = defaults.JobTimeout
	}
	return c
}
