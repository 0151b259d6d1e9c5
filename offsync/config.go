// Copyright 2025 Toly Pochkin
// SPDX-License-Identifier: Apache-2.0

package offsync

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the tunables of the sync engine. The literal values
// observed in the entity services (3 total attempts, 1s..60s backoff)
// live here rather than at call sites.
type Config struct {
	// MaxAttempts is the TOTAL number of attempts a job gets before it
	// is forced to failed. With the default of 3 a job fails permanently
	// on its 3rd failed attempt and is never tried a 4th time.
	MaxAttempts int `env:"OFFSYNC_MAX_ATTEMPTS" envDefault:"3"`

	// ListLimit bounds remote list/search fetches.
	ListLimit int `env:"OFFSYNC_LIST_LIMIT" envDefault:"1000"`

	// EventBuffer is the per-subscriber event channel capacity.
	EventBuffer int `env:"OFFSYNC_EVENT_BUFFER" envDefault:"64"`

	// BackoffMin/BackoffMax bound the delay between failed replay passes.
	BackoffMin time.Duration `env:"OFFSYNC_BACKOFF_MIN" envDefault:"1s"`
	BackoffMax time.Duration `env:"OFFSYNC_BACKOFF_MAX" envDefault:"60s"`
}

// DefaultConfig returns the configuration used by the sampled services.
func DefaultConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		ListLimit:   1000,
		EventBuffer: 64,
		BackoffMin:  1 * time.Second,
		BackoffMax:  60 * time.Second,
	}
}

// ConfigFromEnv builds a Config from OFFSYNC_* environment variables,
// falling back to the defaults above.
func ConfigFromEnv() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("MaxAttempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.BackoffMin <= 0 || c.BackoffMax < c.BackoffMin {
		return fmt.Errorf("invalid backoff bounds: min=%s max=%s", c.BackoffMin, c.BackoffMax)
	}
	return nil
}
