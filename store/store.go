// Package store provides the key/value backends used to cache analyses.
// Every backend stores opaque bytes with a per-entry TTL and is safe for
// concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"failsight/logger"
)

// ErrNotFound is returned by Get for missing and expired keys.
var ErrNotFound = errors.New("store: key not found")

// Store is a TTL key/value store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A non-positive ttl means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Purger is implemented by backends that keep expired rows around until
// they are explicitly removed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Backend types accepted by Config.Type.
const (
	TypeNone   = "none"
	TypeMemory = "memory"
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
	TypeRedis  = "redis"
)

// Config selects and configures a backend.
type Config struct {
	Type   string       `yaml:"type"`
	Memory MemoryConfig `yaml:"memory"`
	SQLite SQLiteConfig `yaml:"sqlite"`
	MySQL  MySQLConfig  `yaml:"mysql"`
	Redis  RedisConfig  `yaml:"redis"`
}

// Open creates the backend selected by cfg.Type. The "none" type returns
// a nil Store, which disables caching.
func Open(cfg Config, log logger.Logger) (Store, error) {
	switch cfg.Type {
	case TypeNone:
		return nil, nil
	case "", TypeMemory:
		return NewMemoryStore(cfg.Memory), nil
	}

	var (
		s   Store
		err error
	)
	switch cfg.Type {
	case TypeSQLite:
		s, err = NewSQLiteStore(cfg.SQLite.Path, log)
	case TypeMySQL:
		s, err = NewMySQLStore(cfg.MySQL, log)
	case TypeRedis:
		s, err = NewRedisStore(cfg.Redis, log)
	default:
		return nil, fmt.Errorf("unknown cache type %q", cfg.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s cache: %w", cfg.Type, err)
	}
	return s, nil
}

// expiresAt converts a ttl into an absolute unix-millisecond deadline.
// Zero means the entry never expires.
func expiresAt(now time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now.Add(ttl).UnixMilli()
}

func expired(now time.Time, deadline int64) bool {
	return deadline != 0 && now.UnixMilli() >= deadline
}
