package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/air-quality-server/internal/notification"
	"github.com/smukkama/air-quality-server/internal/protocol"
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

	logger.Info("Starting notification service...")

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Infow("Notifications will be logged only", "reason", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group", false)
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Infow("Notification service is running", "topic", cfg.Kafka.TopicAlerts)

	go queue.Process(ctx, consumer, func(ctx context.Context, msg kafka.Message) error {
		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			return err
		}
		if err := notifier.SendAlertNotification(alert); err != nil {
			return fmt.Errorf("station %s: %w: %w", alert.Station, err, queue.ErrRetry)
		}
		return nil
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
}
