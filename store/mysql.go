package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"failsight/logger"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLConfig holds connection settings for the MySQL store.
type MySQLConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// MySQLStore implements Store using MySQL.
type MySQLStore struct {
	sqlStore
}

// NewMySQLStore opens a MySQL database and initializes the schema.
func NewMySQLStore(cfg MySQLConfig, log logger.Logger) (*MySQLStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql dsn is required")
	}
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}

	s := &MySQLStore{sqlStore{
		db:   db,
		log:  log,
		name: "mysql",
		now:  time.Now,
		q: sqlQueries{
			get:    "SELECT `value`, expires_at FROM cache_entries WHERE cache_key = ?",
			upsert: "INSERT INTO cache_entries (cache_key, `value`, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE `value` = VALUES(`value`), expires_at = VALUES(expires_at)",
			delete: "DELETE FROM cache_entries WHERE cache_key = ?",
			purge:  "DELETE FROM cache_entries WHERE expires_at != 0 AND expires_at <= ?",
		},
	}}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	log.Info("store.mysql.opened")
	return s, nil
}

func (s *MySQLStore) initSchema(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS cache_entries (" +
			"cache_key VARCHAR(255) NOT NULL PRIMARY KEY, " +
			"`value` MEDIUMBLOB NOT NULL, " +
			"expires_at BIGINT NOT NULL DEFAULT 0" +
			") ENGINE=InnoDB DEFAULT CHARSET=utf8mb4",
		"CREATE INDEX idx_cache_entries_expires_at ON cache_entries(expires_at)",
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			if isDuplicateKeyError(err) {
				continue
			}
			return fmt.Errorf("exec schema: %w", err)
		}
	}
	return nil
}

func isDuplicateKeyError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Duplicate key name") ||
		strings.Contains(msg, "Duplicate column name") ||
		strings.Contains(msg, "already exists")
}
