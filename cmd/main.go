package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"logitrack/config"
	"logitrack/pkg/api"
	"logitrack/pkg/events"
	"logitrack/pkg/logger"
	"logitrack/pkg/models"
	"logitrack/service"
	"logitrack/storage"
	"logitrack/storage/driver"
)

func main() {
	// 1. Load Config
	cfg := config.Load()

	// 2. Initialize Logger
	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)

	// 3. Initialize Storage
	kv, err := driver.Open(context.Background(), cfg, log)
	if err != nil {
		log.Error("Failed to open store", logger.String("driver", cfg.StoreDriver), logger.Error(err))
		os.Exit(1)
	}
	stg := storage.New(kv, cfg.StoreKey, log)
	defer stg.Close()

	// 4. Initialize Event Publisher
	var pub events.Publisher = events.NewNop()
	var kafkaPub *events.KafkaPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPub = events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.ServiceName, 1024, log)
		kafkaPub.Start()
		pub = kafkaPub
		log.Info("Publishing events to kafka", logger.String("topic", cfg.KafkaTopic))
	}

	// 5. Initialize Services
	svc := service.New(stg, pub, log, cfg.Simulation)
	unsubscribe := stg.Order().Subscribe(func(orders []models.Order) {
		log.Debug("orders changed", logger.Int("count", len(orders)))
	})
	defer unsubscribe()

	// 6. Run HTTP server
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           api.NewRouter(svc, log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("HTTP server is starting...", logger.String("addr", srv.Addr), logger.String("driver", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed", logger.Error(err))
			os.Exit(1)
		}
	}()

	// 7. Graceful Shutdown listener
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	<-quit

	log.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("HTTP shutdown failed", logger.Error(err))
	}
	svc.Delivery().StopAll()
	if kafkaPub != nil {
		kafkaPub.Close()
		kafkaPub.WaitClosed()
	}
}
