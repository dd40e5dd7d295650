package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/smukkama/air-quality-server/internal/alarming"
	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/database"
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

	logger.Info("Starting alerting service...")

	threshold, err := aqi.ParseLevel(cfg.Alert.Level)
	if err != nil {
		logger.Fatalw("Invalid alert level", "error", err)
	}

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatalw("Failed to connect to Redis", "error", err)
	}

	if err := queue.EnsureTopics(cfg.Kafka.Brokers, queue.Topic(cfg.Kafka.TopicAlerts, 1)); err != nil {
		logger.Warnw("Failed to ensure topic", "topic", cfg.Kafka.TopicAlerts, "error", err)
	}
	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()

	evaluator, err := alarming.NewEvaluator(threshold, cfg.Alert.Hours, alarming.NewStateManager(redisClient), db, alertProducer, logger)
	if err != nil {
		logger.Fatalw("Failed to create evaluator", "error", err)
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAQI, "alerting-group", false)
	defer consumer.Close()

	logger.Infow("Alerting service is running", "level", threshold, "hours", cfg.Alert.Hours)

	go queue.Process(ctx, consumer, func(ctx context.Context, msg kafka.Message) error {
		aqiMsg, err := protocol.DecodeAQIMessage(msg.Value)
		if err != nil {
			return err
		}
		if err := evaluator.Evaluate(ctx, aqiMsg); err != nil {
			return fmt.Errorf("station %s: %w", aqiMsg.Station, err)
		}
		return nil
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
}
