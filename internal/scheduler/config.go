package scheduler

import (
	"time"

	"github.com/smallbiznis/claimaudit/internal/config"
)

// Config controls the quarterly batch loop.
type Config struct {
	Enabled     bool
	RunInterval time.Duration
	JobTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		RunInterval: 5 * time.Minute,
		JobTimeout:  2 * time.Minute,
	}
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

func ProvideConfig(cfg config.Config) Config {
	return Config{
		Enabled:     cfg.SchedulerEnabled,
		RunInterval: time.Duration(cfg.SchedulerIntervalSeconds) * time.Second,
		JobTimeout:  time.Duration(cfg.SchedulerJobTimeoutSeconds) * time.Second,
	}.withDefaults()
}
