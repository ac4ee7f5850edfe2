package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/appointment-consultations/internal/config"
	"github.com/hackgods/appointment-consultations/internal/db"
	"github.com/hackgods/appointment-consultations/internal/logger"
	"github.com/hackgods/appointment-consultations/internal/outbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if len(cfg.KafkaBrokers) == 0 {
		log.Warn("event relay disabled (no kafka brokers configured)")
		return
	}

	log.Info("event-relay starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.RelayInterval),
		zap.Int("batch_size", cfg.RelayBatchSize),
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	writer := outbox.NewKafkaWriter(cfg.KafkaBrokers)
	defer func() {
		if err := writer.Close(); err != nil {
			log.Warn("error closing kafka writer", zap.Error(err))
		}
	}()

	publisher := outbox.NewPublisher(outbox.NewPgStore(pgPool), writer, log.Named("outbox"), outbox.PublisherConfig{
		Topic:     cfg.KafkaTopic,
		PollEvery: cfg.RelayInterval,
		BatchSize: cfg.RelayBatchSize,
	})

	publisher.Run(rootCtx)
	log.Info("shutdown signal received, stopping event relay")
}
