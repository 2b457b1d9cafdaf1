package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/storage"
)

const notifyChannel = "kv_changed"

// Store is a key-value table in Postgres. Writers NOTIFY on commit, so every
// process listening on the same database sees the change.
type Store struct {
	pool     *pgxpool.Pool
	log      logger.ILogger
	watchers storage.Watchers
	cancel   context.CancelFunc
	done     chan struct{}
}

var _ storage.IKeyValue = (*Store)(nil)

func New(ctx context.Context, cfg config.Config, log logger.ILogger) (*Store, error) {
	url := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.PostgresUser,
		cfg.PostgresPassword,
		cfg.PostgresHost,
		cfg.PostgresPort,
		cfg.PostgresDB,
	)

	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		log.Error("error while parsing Postgres config", logger.Error(err))
		return nil, err
	}
	poolConfig.MaxConns = 8
	poolConfig.MinConns = 1
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("failed to connect Postgres", logger.Error(err))
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("failed to ping Postgres", logger.Error(err))
		return nil, err
	}

	if err := runMigrations(migrationsDir(cfg), url, log); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info("Postgres connected")

	lctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		pool:   pool,
		log:    log,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go s.listen(lctx)
	return s, nil
}

func migrationsDir(cfg config.Config) string {
	if cfg.PostgresMigrations != "" {
		return cfg.PostgresMigrations
	}
	cwd, _ := os.Getwd()
	mPath := filepath.Join(cwd, "migrations")

	// Check if migrations/postgres exists, if so use it, else use migrations
	if _, err := os.Stat(filepath.Join(cwd, "migrations", "postgres")); err == nil {
		mPath = filepath.Join(cwd, "migrations", "postgres")
	}
	return mPath
}

// runMigrations fails when the migrations cannot be read: without them the
// kv_store table may not exist.
func runMigrations(dir, url string, log logger.ILogger) error {
	m, err := migrate.New("file://"+dir, url)
	if err != nil {
		log.Error("migration init error", logger.String("dir", dir), logger.Error(err))
		return fmt.Errorf("init migrations from %s: %w", dir, err)
	}
	defer m.Close()

	if err = m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) || strings.Contains(err.Error(), "no change") {
			log.Info("no migrations to apply")
			return nil
		}
		log.Error("migration up error", logger.Error(err))
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv_store WHERE key = $1`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		s.log.Error("failed to get key", logger.String("key", key), logger.Error(err))
		return nil, false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO kv_store (key, value, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, key, value)
	if err != nil {
		s.log.Error("failed to set key", logger.String("key", key), logger.Error(err))
		return err
	}
	// delivered to listeners only once the transaction commits
	if _, err = tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, key); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) Watch(key string, fn func()) func() {
	return s.watchers.Add(key, fn)
}

func (s *Store) Close() {
	s.cancel()
	<-s.done
	s.pool.Close()
}

func (s *Store) listen(ctx context.Context) {
	defer close(s.done)

	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.log.Warning("postgres listener stopped, reconnecting", logger.Error(err))
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return err
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		s.watchers.Notify(n.Payload)
	}
}
