// Package worker provides a bounded pool that drains the submission
// queue through the engine dispatch path.
package worker

import (
	"errors"
	"time"
)

const (
	// DefaultCount is the default number of workers in the pool.
	DefaultCount = 4

	// DefaultItemTimeout is the default timeout for one work item.
	DefaultItemTimeout = 2 * time.Minute

	// DefaultDrainTimeout is the default timeout for graceful shutdown.
	DefaultDrainTimeout = 30 * time.Second

	// MinCount is the minimum allowed pool size.
	MinCount = 1

	// MaxCount is the maximum allowed pool size.
	MaxCount = 50
)

// Config holds configuration for the worker pool.
type Config struct {
	// Count is the number of concurrent workers.
	Count int

	// ItemTimeout bounds the processing of one work item.
	ItemTimeout time.Duration

	// DrainTimeout is the maximum wait for in-flight items on shutdown.
	DrainTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Count:        DefaultCount,
		ItemTimeout:  DefaultItemTimeout,
		DrainTimeout: DefaultDrainTimeout,
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Count < MinCount {
		return errors.New("worker count must be at least 1")
	}
	if c.Count > MaxCount {
		return errors.New("worker count cannot exceed 50")
	}
	if c.ItemTimeout <= 0 {
		return errors.New("item timeout must be positive")
	}
	if c.DrainTimeout <= 0 {
		return errors.New("drain timeout must be positive")
	}
	return nil
}
