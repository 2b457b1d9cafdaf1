package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"logitrack/pkg/logger"
	"logitrack/storage"
)

// Store keeps values in a single-table SQLite file. Change notification is
// local to the process that opened the file.
type Store struct {
	db       *sql.DB
	log      logger.ILogger
	watchers storage.Watchers
}

var _ storage.IKeyValue = (*Store)(nil)

// Open opens (or creates) the database file and makes sure the kv_store
// table exists.
func Open(path string, log logger.ILogger) (*Store, error) {
	if path == "" {
		path = "logitrack.db"
	}
	d, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(); err != nil {
		_ = d.Close()
		return nil, err
	}
	// journal_mode may not be supported in some contexts (e.g., in-memory). Ignore errors.
	_, _ = d.Exec(`PRAGMA journal_mode=WAL`)
	if _, err := d.Exec(`PRAGMA busy_timeout=5000`); err != nil {
		_ = d.Close()
		return nil, err
	}
	if _, err := d.Exec(`CREATE TABLE IF NOT EXISTS kv_store (
		key        TEXT PRIMARY KEY,
		value      BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (CURRENT_TIMESTAMP)
	)`); err != nil {
		_ = d.Close()
		return nil, err
	}

	log.Info("SQLite opened", logger.String("path", path))
	return &Store{db: d, log: log}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		s.log.Error("failed to get key", logger.String("key", key), logger.Error(err))
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		s.log.Error("failed to set key", logger.String("key", key), logger.Error(err))
		return err
	}

	s.watchers.Notify(key)
	return nil
}

func (s *Store) Watch(key string, fn func()) func() {
	return s.watchers.Add(key, fn)
}

func (s *Store) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Error("close sqlite", logger.Error(err))
	}
}
