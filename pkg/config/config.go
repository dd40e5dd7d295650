package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database  DatabaseConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	TCPServer TCPServerConfig
	Pipeline  PipelineConfig
	Alert     AlertConfig
	SMTP      SMTPConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	SnapshotTTL time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	TopicReadings string
	TopicAQI      string
	TopicAlerts   string
	NumPartitions int
	BatchSize     int
	FlushInterval time.Duration
}

type TCPServerConfig struct {
	Port              int
	MaxConnections    int
	IdentifyTimeout   time.Duration
	InactivityTimeout time.Duration
}

// PipelineConfig drives the periodic AQI refresh
type PipelineConfig struct {
	Lags            int
	Horizon         int
	RefreshInterval time.Duration
	RefreshDelay    time.Duration
	Stations        []string
	History         time.Duration
	DailyTime       string
	MigrationsDir   string
}

// AlertConfig sets when a station's AQI level raises an alert
type AlertConfig struct {
	Level string
	Hours int
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

type LogConfig struct {
	Level       string
	Development bool
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "aqi_user"),
			Password: getEnv("DB_PASSWORD", "aqi_pass"),
			DBName:   getEnv("DB_NAME", "aqi_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:        getEnv("REDIS_ADDR", "localhost:6379"),
			Password:    getEnv("REDIS_PASSWORD", ""),
			DB:          getEnvAsInt("REDIS_DB", 0),
			SnapshotTTL: getEnvAsDuration("SNAPSHOT_TTL", 2*time.Hour),
		},
		Kafka: KafkaConfig{
			Brokers:       getEnvAsList("KAFKA_BROKERS", []string{"localhost:9092"}),
			TopicReadings: getEnv("KAFKA_TOPIC_READINGS", "aqi.readings.raw"),
			TopicAQI:      getEnv("KAFKA_TOPIC_AQI", "aqi.hourly"),
			TopicAlerts:   getEnv("KAFKA_TOPIC_ALERTS", "aqi.alerts"),
			NumPartitions: getEnvAsInt("KAFKA_NUM_PARTITIONS", 10),
			BatchSize:     getEnvAsInt("KAFKA_BATCH_SIZE", 100),
			FlushInterval: getEnvAsDuration("KAFKA_FLUSH_INTERVAL", 5*time.Second),
		},
		TCPServer: TCPServerConfig{
			Port:              getEnvAsInt("TCP_PORT", 8080),
			MaxConnections:    getEnvAsInt("TCP_MAX_CONNECTIONS", 10000),
			IdentifyTimeout:   getEnvAsDuration("TCP_IDENTIFY_TIMEOUT", 10*time.Second),
			InactivityTimeout: getEnvAsDuration("TCP_INACTIVITY_TIMEOUT", 2*time.Minute),
		},
		Pipeline: PipelineConfig{
			Lags:            getEnvAsInt("PIPELINE_LAGS", 3),
			Horizon:         getEnvAsInt("PIPELINE_HORIZON", 6),
			RefreshInterval: getEnvAsDuration("PIPELINE_REFRESH_INTERVAL", time.Hour),
			RefreshDelay:    getEnvAsDuration("PIPELINE_REFRESH_DELAY", 5*time.Minute),
			Stations:        getEnvAsList("PIPELINE_STATIONS", nil),
			History:         getEnvAsDuration("PIPELINE_HISTORY", 30*24*time.Hour),
			DailyTime:       getEnv("PIPELINE_DAILY_TIME", "00:05"),
			MigrationsDir:   getEnv("MIGRATIONS_DIR", "migrations"),
		},
		Alert: AlertConfig{
			Level: getEnv("ALERT_LEVEL", "Unhealthy for sensitive groups"),
			Hours: getEnvAsInt("ALERT_HOURS", 2),
		},
		SMTP: SMTPConfig{
			Host:     getEnv("SMTP_HOST", "smtp.gmail.com"),
			Port:     getEnvAsInt("SMTP_PORT", 587),
			Username: getEnv("SMTP_USERNAME", ""),
			Password: getEnv("SMTP_PASSWORD", ""),
			From:     getEnv("SMTP_FROM", "aqi-server@example.com"),
			To:       getEnv("SMTP_TO", "admin@example.com"),
		},
		Log: LogConfig{
			Level:       getEnv("LOG_LEVEL", "info"),
			Development: getEnvAsBool("LOG_DEVELOPMENT", false),
		},
	}

	if config.Pipeline.Lags < 1 {
		return nil, fmt.Errorf("PIPELINE_LAGS must be positive, got %d", config.Pipeline.Lags)
	}
	if config.Pipeline.Horizon < 1 {
		return nil, fmt.Errorf("PIPELINE_HORIZON must be positive, got %d", config.Pipeline.Horizon)
	}
	if config.Alert.Hours < 1 {
		return nil, fmt.Errorf("ALERT_HOURS must be positive, got %d", config.Alert.Hours)
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
