package analysis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"failsight/logger"
	"failsight/store"
)

// recordingStore is an in-memory store.Store that counts every call.
type recordingStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	gets   int
	sets   int
	getErr error
	setErr error
}

func newRecordingStore() *recordingStore {
	return &recordingStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *recordingStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	if s.getErr != nil {
		return nil, s.getErr
	}
	v, ok := s.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (s *recordingStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets++
	if s.setErr != nil {
		return s.setErr
	}
	s.data[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *recordingStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

func (s *recordingStore) Close() error { return nil }

func (s *recordingStore) calls() (gets, sets int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets, s.sets
}

func mustValidate(t *testing.T, rec map[string]any) *Analysis {
	t.Helper()
	a, ok := Validate(rec)
	if !ok {
		t.Fatalf("Validate rejected %v", rec)
	}
	return a
}

func TestResultCache_ZeroTTLNeverTouchesStore(t *testing.T) {
	s := newRecordingStore()
	c := NewResultCache(s, 0, logger.Nop())
	a := mustValidate(t, map[string]any{"english_exception": "x"})

	c.Put(context.Background(), "fp", a)
	if got, ok := c.Get(context.Background(), "fp"); ok || got != nil {
		t.Errorf("Get = %v, %v; want miss", got, ok)
	}
	if gets, sets := s.calls(); gets != 0 || sets != 0 {
		t.Errorf("store saw %d gets and %d sets, want none", gets, sets)
	}
}

func TestResultCache_NilStore(t *testing.T) {
	c := NewResultCache(nil, time.Minute, nil)
	if c.Enabled() {
		t.Fatal("cache without store should be disabled")
	}
	c.Put(context.Background(), "fp", mustValidate(t, map[string]any{"english_exception": "x"}))
	if _, ok := c.Get(context.Background(), "fp"); ok {
		t.Error("expected miss")
	}
}

func TestResultCache_PutThenGet(t *testing.T) {
	s := newRecordingStore()
	c := NewResultCache(s, 10*time.Minute, logger.Nop())
	a := mustValidate(t, map[string]any{
		"english_exception": "x",
		"probable_causes":   []any{"c1"},
		"confidence":        0.3,
	})

	c.Put(context.Background(), "fp", a)
	if s.ttls["fp"] != 10*time.Minute {
		t.Errorf("ttl = %s, want 10m", s.ttls["fp"])
	}

	got, ok := c.Get(context.Background(), "fp")
	if !ok {
		t.Fatal("expected hit")
	}
	if got.EnglishExplanation() != "x" || got.Confidence() != 0.3 || got.ProbableCauses()[0] != "c1" {
		t.Errorf("cached analysis = %+v", got)
	}
}

func TestResultCache_BadEntriesAreMisses(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"not json", "\x00\x01"},
		{"json array", `[1,2]`},
		{"fails validation", `{"english_exception":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordingStore()
			s.data["fp"] = []byte(tt.value)
			c := NewResultCache(s, time.Minute, logger.Nop())
			if got, ok := c.Get(context.Background(), "fp"); ok || got != nil {
				t.Errorf("Get = %v, %v; want miss", got, ok)
			}
		})
	}
}

func TestResultCache_StoreErrorsAbsorbed(t *testing.T) {
	s := newRecordingStore()
	s.getErr = errors.New("connection reset")
	s.setErr = errors.New("read-only replica")
	c := NewResultCache(s, time.Minute, logger.Nop())

	if _, ok := c.Get(context.Background(), "fp"); ok {
		t.Error("expected miss on read error")
	}
	c.Put(context.Background(), "fp", mustValidate(t, map[string]any{"english_exception": "x"}))
	if gets, sets := s.calls(); gets != 1 || sets != 1 {
		t.Errorf("gets=%d sets=%d, want 1 and 1", gets, sets)
	}
}
