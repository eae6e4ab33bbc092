package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"failsight/logger"
	"failsight/store"
)

// ResultCache is a cache-aside view of a store.Store holding analyses keyed
// by fingerprint. Backend failures never surface: a failed read is a miss
// and a failed write is dropped.
type ResultCache struct {
	store store.Store
	ttl   time.Duration
	log   logger.Logger
}

// NewResultCache creates a cache over s. With a zero ttl or a nil store the
// cache is disabled and never touches the backend.
func NewResultCache(s store.Store, ttl time.Duration, log logger.Logger) *ResultCache {
	if log == nil {
		log = logger.Nop()
	}
	return &ResultCache{store: s, ttl: ttl, log: log}
}

// Enabled reports whether reads and writes reach the backend.
func (c *ResultCache) Enabled() bool {
	return c != nil && c.store != nil && c.ttl > 0
}

// Get returns the cached analysis for fingerprint. Entries are rebuilt
// through Validate, so a corrupted or foreign entry reads as a miss.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (*Analysis, bool) {
	if !c.Enabled() {
		return nil, false
	}

	data, err := c.store.Get(ctx, fingerprint)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			c.log.Warn("analysis.cache_read_failed",
				logger.String("fingerprint", fingerprint),
				logger.Err(err),
			)
		}
		return nil, false
	}

	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		c.log.Warn("analysis.cache_entry_corrupt",
			logger.String("fingerprint", fingerprint),
			logger.Err(err),
		)
		return nil, false
	}
	a, ok := Validate(rec)
	if !ok {
		c.log.Warn("analysis.cache_entry_invalid", logger.String("fingerprint", fingerprint))
		return nil, false
	}
	return a, true
}

// Put stores a under fingerprint for the configured TTL. Best effort.
func (c *ResultCache) Put(ctx context.Context, fingerprint string, a *Analysis) {
	if !c.Enabled() || a == nil {
		return
	}

	data, err := json.Marshal(a)
	if err != nil {
		c.log.Warn("analysis.cache_encode_failed", logger.Err(err))
		return
	}
	if err := c.store.Set(ctx, fingerprint, data, c.ttl); err != nil {
		c.log.Warn("analysis.cache_write_failed",
			logger.String("fingerprint", fingerprint),
			logger.Err(err),
		)
	}
}

// Invalidate removes the entry for fingerprint. A missing entry is not an
// error.
func (c *ResultCache) Invalidate(ctx context.Context, fingerprint string) error {
	if c == nil || c.store == nil {
		return nil
	}
	if err := c.store.Delete(ctx, fingerprint); err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("invalidate %s: %w", fingerprint, err)
	}
	return nil
}
