package connpool

import (
	"time"

	"github.com/samber/oops"
)

// Default tuning, appropriate for a single-user client: up to 5 idle
// connections which are evicted after 5 minutes of inactivity.
const (
	DefaultMaxIdleConns = 5
	DefaultKeepAlive    = 5 * time.Minute
)

// LeakHandler receives a diagnostic when the pool discovers an abandoned
// claim on a connection to addr. It is informational only: the pool has
// already flagged the connection non-reusable and hastened its eviction.
// A panicking handler is recovered and never affects pool callers.
type LeakHandler func(addr *Address, msg string)

// PoolConfig contains configuration for creating a Pool.
// It follows the builder pattern for optional configuration and validation.
type PoolConfig struct {
	// MaxIdleConns is the maximum number of idle connections kept pooled.
	// Zero keeps no idle connections at all. Default: 5.
	MaxIdleConns int

	// KeepAlive is the maximum time an idle connection stays pooled before
	// eviction. Must be positive or the cleanup sweep would spin.
	// Default: 5 minutes.
	KeepAlive time.Duration

	// LeakHandler is invoked when an abandoned claim is discovered.
	// Default: a warning through the package logger.
	LeakHandler LeakHandler
}

// NewPoolConfig creates a new PoolConfig with sensible defaults.
func NewPoolConfig() *PoolConfig {
	return &PoolConfig{
		MaxIdleConns: DefaultMaxIdleConns,
		KeepAlive:    DefaultKeepAlive,
	}
}

// WithMaxIdleConns sets the maximum number of pooled idle connections.
func (c *PoolConfig) WithMaxIdleConns(n int) *PoolConfig {
	c.MaxIdleConns = n
	return c
}

// WithKeepAlive sets the idle keep-alive duration.
func (c *PoolConfig) WithKeepAlive(d time.Duration) *PoolConfig {
	c.KeepAlive = d
	return c
}

// WithLeakHandler sets the sink for leak diagnostics.
func (c *PoolConfig) WithLeakHandler(h LeakHandler) *PoolConfig {
	c.LeakHandler = h
	return c
}

// Validate checks if the configuration is valid and complete.
// Returns an error with context if validation fails.
func (c *PoolConfig) Validate() error {
	if c.KeepAlive <= 0 {
		return oops.
			Code("INVALID_KEEP_ALIVE").
			In("connpool").
			With("keep_alive", c.KeepAlive).
			Errorf("keep-alive duration must be positive")
	}

	if c.MaxIdleConns < 0 {
		return oops.
			Code("INVALID_MAX_IDLE").
			In("connpool").
			With("max_idle_conns", c.MaxIdleConns).
			Errorf("max idle connections must be >= 0")
	}

	return nil
}
