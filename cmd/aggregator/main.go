package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/aggregation"
	"github.com/smukkama/air-quality-server/internal/cache"
	"github.com/smukkama/air-quality-server/internal/database"
	"github.com/smukkama/air-quality-server/internal/ingest"
	"github.com/smukkama/air-quality-server/internal/queue"
	"github.com/smukkama/air-quality-server/internal/scheduler"
	"github.com/smukkama/air-quality-server/pkg/config"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

func main() {
	dataDir := flag.String("data", "", "read station CSV exports from <dir>/<station>/ instead of the database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if len(cfg.Pipeline.Stations) == 0 {
		logger.Fatal("No stations configured, set PIPELINE_STATIONS")
	}

	logger.Info("Starting aggregation service...")

	db, err := database.Connect(cfg.Database.ConnectionString())
	if err != nil {
		logger.Fatalw("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := db.RunMigrations(cfg.Pipeline.MigrationsDir, logger); err != nil {
		logger.Fatalw("Failed to run migrations", "error", err)
	}

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
	snapshots := cache.NewSnapshotCache(redisClient, cfg.Redis.SnapshotTTL)

	if err := queue.EnsureTopics(cfg.Kafka.Brokers, queue.Topic(cfg.Kafka.TopicAQI, cfg.Kafka.NumPartitions)); err != nil {
		logger.Warnw("Failed to ensure topic", "topic", cfg.Kafka.TopicAQI, "error", err)
	}
	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAQI)
	defer producer.Close()

	var source aggregation.ReadingSource = db
	if *dataDir != "" {
		source = ingest.FileSource{Dir: *dataDir}
		logger.Infow("Reading station exports from disk", "dir", *dataDir)
	}

	service := aggregation.NewService(source, aggregation.Options{
		Stations: cfg.Pipeline.Stations,
		Lags:     cfg.Pipeline.Lags,
		Horizon:  cfg.Pipeline.Horizon,
		History:  cfg.Pipeline.History,
	}, logger,
		aggregation.NewDatabaseSink(db),
		snapshots,
		aggregation.NewRecordPublisher(producer),
	)
	primeFromCache(ctx, service, snapshots, logger)

	sched := scheduler.New(2)
	sched.Start()
	defer sched.Stop()

	refresh := func() {
		logger.Info("Refreshing station AQI")
		if err := service.RefreshAll(ctx); err != nil {
			logger.Errorw("AQI refresh failed", "error", err)
		}
	}
	nextRefresh := func(t time.Time) time.Time {
		return aggregation.NextRefresh(t, cfg.Pipeline.RefreshInterval, cfg.Pipeline.RefreshDelay)
	}
	if err := sched.ScheduleRecurring("aqi-refresh", time.Now(), nextRefresh, refresh); err != nil {
		logger.Fatalw("Failed to schedule refresh", "error", err)
	}

	summarizer := aggregation.NewDailySummarizer(db, logger)
	firstDaily, err := aggregation.NextDailyRun(time.Now(), cfg.Pipeline.DailyTime)
	if err != nil {
		logger.Fatalw("Invalid daily summary time", "error", err)
	}
	nextDaily := func(t time.Time) time.Time {
		next, _ := aggregation.NextDailyRun(t, cfg.Pipeline.DailyTime)
		return next
	}
	summarize := func() {
		if err := summarizer.SummarizePreviousDay(ctx, time.Now()); err != nil {
			logger.Errorw("Daily summary failed", "error", err)
		}
	}
	if err := sched.ScheduleRecurring("aqi-daily", firstDaily, nextDaily, summarize); err != nil {
		logger.Fatalw("Failed to schedule daily summary", "error", err)
	}

	logger.Infow("Aggregation service is running",
		"stations", cfg.Pipeline.Stations,
		"interval", cfg.Pipeline.RefreshInterval,
		"daily_time", cfg.Pipeline.DailyTime)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down gracefully...")
	cancel()
}

// primeFromCache restores the last snapshot of every station so reads are served
// before the first refresh completes
func primeFromCache(ctx context.Context, service *aggregation.Service, snapshots *cache.SnapshotCache, logger *zap.SugaredLogger) {
	for _, station := range service.Stations() {
		snap, err := snapshots.Get(ctx, station)
		if errors.Is(err, aggregation.ErrNoSnapshot) {
			continue
		}
		if err != nil {
			logger.Warnw("Failed to load cached snapshot", "station", station, "error", err)
			continue
		}
		service.Prime(snap)
		logger.Infow("Restored cached snapshot", "station", station, "computed_at", snap.ComputedAt)
	}
}
