package store

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize is the number of entries a MemoryStore keeps when no
// size is configured.
const DefaultMemorySize = 1024

// MemoryConfig configures the in-process backend.
type MemoryConfig struct {
	Size   int           `yaml:"size"`    // maximum number of entries
	MaxTTL time.Duration `yaml:"max_ttl"` // upper bound on any entry's lifetime, 0 for none
}

type memoryEntry struct {
	value    []byte
	deadline int64
}

// MemoryStore is a size-bounded LRU living in the process. Entries expire
// at their own TTL; MaxTTL additionally bounds how long anything may stay.
type MemoryStore struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// NewMemoryStore creates an in-memory store.
func NewMemoryStore(cfg MemoryConfig) *MemoryStore {
	size := cfg.Size
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, memoryEntry](size, nil, cfg.MaxTTL),
		now: time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	if expired(m.now(), e.deadline) {
		m.lru.Remove(key)
		return nil, ErrNotFound
	}
	return slices.Clone(e.value), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.lru.Add(key, memoryEntry{value: slices.Clone(value), deadline: expiresAt(m.now(), ttl)})
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.lru.Remove(key)
	return nil
}

// Len returns the number of entries, including expired ones not yet evicted.
func (m *MemoryStore) Len() int { return m.lru.Len() }

func (m *MemoryStore) Close() error {
	m.lru.Purge()
	return nil
}
