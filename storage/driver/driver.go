// Package driver opens the key-value backend selected by configuration.
package driver

import (
	"context"
	"fmt"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/storage"
	"logitrack/storage/memory"
	"logitrack/storage/postgres"
	"logitrack/storage/redis"
	"logitrack/storage/sqlite"
)

func Open(ctx context.Context, cfg config.Config, log logger.ILogger) (storage.IKeyValue, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory, "":
		log.Info("using in-memory store")
		return memory.New(), nil
	case config.DriverSqlite:
		s, err := sqlite.Open(cfg.SqlitePath, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverPostgres:
		s, err := postgres.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverRedis:
		s, err := redis.New(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}
