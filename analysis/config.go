package analysis

import (
	"fmt"
	"time"
)

// Timeout bounds for a single agent call.
const (
	DefaultTimeout = 800 * time.Millisecond
	MinTimeout     = 100 * time.Millisecond
	MaxTimeout     = 5000 * time.Millisecond
)

// DefaultCacheTTL is how long a validated analysis stays cached.
const DefaultCacheTTL = 600 * time.Second

// Config is the immutable runtime configuration of an Analyzer.
type Config struct {
	Timeout      time.Duration // per agent call, measured from its start
	CacheTTL     time.Duration // 0 disables the result cache
	IncludeTrace bool          // send the trace to the agent and hash it into the fingerprint
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{Timeout: DefaultTimeout, CacheTTL: DefaultCacheTTL}
}

// Validate reports whether the configuration is within the supported ranges.
func (c Config) Validate() error {
	if c.Timeout < MinTimeout || c.Timeout > MaxTimeout {
		return fmt.Errorf("timeout must be between %s and %s, got %s", MinTimeout, MaxTimeout, c.Timeout)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.CacheTTL)
	}
	return nil
}
