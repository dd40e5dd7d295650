package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smukkama/air-quality-server/internal/connection"
	"github.com/smukkama/air-quality-server/internal/queue"
	"github.com/smukkama/air-quality-server/internal/scheduler"
	"github.com/smukkama/air-quality-server/internal/server"
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

	logger.Info("Starting station ingestion server...")

	if err := queue.EnsureTopics(cfg.Kafka.Brokers, queue.Topic(cfg.Kafka.TopicReadings, cfg.Kafka.NumPartitions)); err != nil {
		logger.Warnw("Failed to ensure topic", "topic", cfg.Kafka.TopicReadings, "error", err)
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicReadings)
	defer producer.Close()

	connManager := connection.NewManager(cfg.TCPServer.MaxConnections)

	sched := scheduler.New(4)
	sched.Start()
	defer sched.Stop()

	tcpServer := server.NewTCPServer(&cfg.TCPServer, connManager, sched, producer, logger)
	if err := tcpServer.Start(); err != nil {
		logger.Fatalw("Failed to start TCP server", "error", err)
	}
	defer tcpServer.Stop()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := connManager.Stats()
			logger.Infow("Server statistics",
				"connections", stats.TotalConnections,
				"max_connections", stats.MaxConnections,
				"stations", stats.Stations,
				"readings", stats.Readings,
				"scheduled_tasks", sched.Pending())
		}
	}()

	logger.Infow("Station ingestion server is running", "port", cfg.TCPServer.Port, "topic", cfg.Kafka.TopicReadings)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
}
