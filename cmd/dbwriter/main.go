package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/air-quality-server/internal/database"
	"github.com/smukkama/air-quality-server/internal/queue"
	"github.com/smukkama/air-quality-server/pkg/config"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("Starting database writer service...")
	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Pipeline.MigrationsDir, logger); err != nil {
		logger.Fatalw("Failed to run migrations", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings, "dbwriter-group", true)
	defer consumer.Close()

	batchWriter := queue.NewBatchWriter(consumer, db, cfg.Kafka.BatchSize, cfg.Kafka.FlushInterval, logger)
	batchWriter.Start(context.Background())

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := consumer.Stats()
			logger.Infow("Consumer statistics", "messages", stats.Messages, "bytes", stats.Bytes, "errors", stats.Errors)
		}
	}()

	logger.Infow("Database writer service is running",
		"topic", cfg.Kafka.TopicReadings,
		"batch_size", cfg.Kafka.BatchSize,
		"flush_interval", cfg.Kafka.FlushInterval)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
	batchWriter.Stop()
	logger.Info("Database writer service stopped")
}
