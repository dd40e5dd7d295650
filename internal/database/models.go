package database

import (
	"time"

	"github.com/google/uuid"

	"github.com/smukkama/air-quality-server/internal/series"
)

// Station represents an air quality monitoring station
type Station struct {
	ID        string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Reading represents one raw pollutant concentration as reported by a station
type Reading struct {
	ID         int64
	Station    string
	Pollutant  string
	Key        series.Key
	ObservedAt *time.Time
	Value      *float64
	ReceivedAt time.Time
}

// ForecastRun is one model's recursive forecast for a station
type ForecastRun struct {
	RunID     uuid.UUID
	Station   string
	Model     string
	R2        float64
	Values    []float64
	CreatedAt time.Time
}

const (
	ModelLinear = "linear"
	ModelNARX   = "narx"
)

// AlertLog represents a logged AQI alert
type AlertLog struct {
	AlertID   int64
	Station   string
	Level     string
	AQI       float64
	Hours     int
	StartKey  series.Key
	StartTime time.Time
	EndTime   *time.Time
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

const (
	AlertStatusActive  = "ACTIVE"
	AlertStatusCleared = "CLEARED"
)

// observedAt resolves a record key to a timestamp, nil when the key has no known layout
func observedAt(key series.Key) *time.Time {
	t, ok := key.Time()
	if !ok {
		return nil
	}
	return &t
}
