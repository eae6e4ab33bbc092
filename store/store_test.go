package store

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"failsight/logger"
)

// testStoreContract exercises the behaviour every backend must share.
func testStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	value := []byte(`{"english_exception":"x"}`)
	if err := s.Set(ctx, "fp1", value, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := s.Get(ctx, "fp1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, value) {
		t.Errorf("Get = %q, want %q", got, value)
	}

	// Last write wins.
	if err := s.Set(ctx, "fp1", []byte("v2"), time.Hour); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if got, _ := s.Get(ctx, "fp1"); string(got) != "v2" {
		t.Errorf("after overwrite Get = %q, want v2", got)
	}

	if err := s.Delete(ctx, "fp1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "fp1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(ctx, "never-set"); err != nil {
		t.Errorf("Delete(missing) = %v, want nil", err)
	}
}

func TestMySQLStore_Contract(t *testing.T) {
	dsn := os.Getenv("FAILSIGHT_TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("FAILSIGHT_TEST_MYSQL_DSN not set")
	}
	s, err := NewMySQLStore(MySQLConfig{DSN: dsn}, logger.Nop())
	if err != nil {
		t.Fatalf("NewMySQLStore: %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestRedisStore_Contract(t *testing.T) {
	addr := os.Getenv("FAILSIGHT_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("FAILSIGHT_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(RedisConfig{Addr: addr, KeyPrefix: "failsight_test:"}, logger.Nop())
	if err != nil {
		t.Fatalf("NewRedisStore: %v", err)
	}
	defer s.Close()
	testStoreContract(t, s)
}

func TestOpen(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantNil bool
		wantErr bool
	}{
		{"default is memory", Config{}, false, false},
		{"none disables", Config{Type: TypeNone}, true, false},
		{"sqlite", Config{Type: TypeSQLite, SQLite: SQLiteConfig{Path: t.TempDir() + "/c.db"}}, false, false},
		{"sqlite without path", Config{Type: TypeSQLite}, true, true},
		{"mysql without dsn", Config{Type: TypeMySQL}, true, true},
		{"redis without addr", Config{Type: TypeRedis}, true, true},
		{"unknown", Config{Type: "memcached"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.cfg, logger.Nop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if (s == nil) != tt.wantNil {
				t.Fatalf("Open() store = %v, wantNil %v", s, tt.wantNil)
			}
			if s != nil {
				s.Close()
			}
		})
	}
}
