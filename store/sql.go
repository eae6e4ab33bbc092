package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"failsight/logger"
)

// sqlQueries holds the dialect-specific statements of a SQL backend.
type sqlQueries struct {
	get    string
	upsert string
	delete string
	purge  string
}

// sqlStore implements Store over database/sql. The SQLite and MySQL
// backends differ only in their schema and statements.
type sqlStore struct {
	db   *sql.DB
	log  logger.Logger
	name string
	q    sqlQueries
	now  func() time.Time
}

func (s *sqlStore) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value    []byte
		deadline int64
	)
	err := s.db.QueryRowContext(ctx, s.q.get, key).Scan(&value, &deadline)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%s get: %w", s.name, err)
	}
	if expired(s.now(), deadline) {
		return nil, ErrNotFound
	}
	return value, nil
}

func (s *sqlStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, s.q.upsert, key, value, expiresAt(s.now(), ttl))
	if err != nil {
		return fmt.Errorf("%s set: %w", s.name, err)
	}
	return nil
}

func (s *sqlStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, s.q.delete, key); err != nil {
		return fmt.Errorf("%s delete: %w", s.name, err)
	}
	return nil
}

// PurgeExpired deletes every expired entry and returns how many were removed.
func (s *sqlStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.q.purge, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("%s purge: %w", s.name, err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.log.Debug("store.purged", logger.String("backend", s.name), logger.Int64("rows", n))
	}
	return n, nil
}

func (s *sqlStore) Close() error {
	s.log.Info("store." + s.name + ".closing")
	return s.db.Close()
}
