package main

import (
	"context"
	"os"

	"logitrack/config"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/storage"
	"logitrack/storage/driver"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	kv, err := driver.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to open store", logger.Error(err))
		os.Exit(1)
	}
	stg := storage.New(kv, cfg.StoreKey, log)
	defer stg.Close()

	// Overwrite the whole collection, corrupt or not.
	if err := stg.Order().Save(context.Background(), []models.Order{}); err != nil {
		log.Error("Failed to reset orders", logger.Error(err))
		return
	}
	log.Info("Successfully reset orders", logger.String("driver", cfg.StoreDriver), logger.String("key", cfg.StoreKey))
}
