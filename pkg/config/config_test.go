package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Pipeline.Lags)
	assert.Equal(t, 6, cfg.Pipeline.Horizon)
	assert.Equal(t, time.Hour, cfg.Pipeline.RefreshInterval)
	assert.Equal(t, 5*time.Minute, cfg.Pipeline.RefreshDelay)
	assert.Equal(t, "Unhealthy for sensitive groups", cfg.Alert.Level)
	assert.Equal(t, 2, cfg.Alert.Hours)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PIPELINE_LAGS", "4")
	t.Setenv("PIPELINE_STATIONS", "MER, , UIZ,PED")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("SNAPSHOT_TTL", "90m")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Pipeline.Lags)
	assert.Equal(t, []string{"MER", "UIZ", "PED"}, cfg.Pipeline.Stations)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Minute, cfg.Redis.SnapshotTTL)
	assert.True(t, cfg.Log.Development)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("PIPELINE_HORIZON", "six")
	t.Setenv("PIPELINE_REFRESH_INTERVAL", "hourly")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Pipeline.Horizon)
	assert.Equal(t, time.Hour, cfg.Pipeline.RefreshInterval)
}

func TestLoad_RejectsNonPositive(t *testing.T) {
	t.Setenv("PIPELINE_LAGS", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, User: "u", Password: "p", DBName: "aqi", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=aqi sslmode=disable", d.ConnectionString())
}
