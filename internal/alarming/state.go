package alarming

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/air-quality-server/internal/series"
)

// AlertState is the alert state machine of one station
type AlertState struct {
	Status    string     `json:"status"` // CLEAR, PENDING_ALERT, ALERTING
	Level     string     `json:"level,omitempty"`
	StartKey  series.Key `json:"start_key,omitempty"`
	LastKey   series.Key `json:"last_key,omitempty"`
	Hours     int        `json:"hours"`
	PeakAQI   float64    `json:"peak_aqi"`
	StartTime time.Time  `json:"start_time"`
	AlertID   int64      `json:"alert_id,omitempty"`
}

const (
	AlertStateClear   = "CLEAR"
	AlertStatePending = "PENDING_ALERT"
	AlertStateActive  = "ALERTING"
)

const stateKeyPrefix = "aqi_alert_state:"

// StateStore persists alert states per station
type StateStore interface {
	GetState(ctx context.Context, station string) (*AlertState, error)
	SetState(ctx context.Context, station string, state *AlertState) error
	DeleteState(ctx context.Context, station string) error
}

// StateManager manages alert states in Redis
type StateManager struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStateManager creates a new state manager
func NewStateManager(redisClient *redis.Client) *StateManager {
	return &StateManager{redis: redisClient, ttl: 7 * 24 * time.Hour}
}

func stateKey(station string) string {
	return stateKeyPrefix + station
}

// GetState retrieves the alert state of a station, CLEAR when none is stored
func (sm *StateManager) GetState(ctx context.Context, station string) (*AlertState, error) {
	data, err := sm.redis.Get(ctx, stateKey(station)).Bytes()
	if err == redis.Nil {
		return &AlertState{Status: AlertStateClear}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get state from Redis: %w", err)
	}

	var state AlertState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal state: %w", err)
	}
	return &state, nil
}

// SetState saves the alert state of a station. Stale states expire after a week.
func (sm *StateManager) SetState(ctx context.Context, station string, state *AlertState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := sm.redis.Set(ctx, stateKey(station), data, sm.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set state in Redis: %w", err)
	}
	return nil
}

// DeleteState removes the alert state (returns to CLEAR)
func (sm *StateManager) DeleteState(ctx context.Context, station string) error {
	return sm.redis.Del(ctx, stateKey(station)).Err()
}

// States returns every stored state keyed by station
func (sm *StateManager) States(ctx context.Context) (map[string]*AlertState, error) {
	states := make(map[string]*AlertState)

	iter := sm.redis.Scan(ctx, 0, stateKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		data, err := sm.redis.Get(ctx, key).Bytes()
		if err != nil {
			continue
		}

		var state AlertState
		if err := json.Unmarshal(data, &state); err != nil {
			continue
		}
		states[strings.TrimPrefix(key, stateKeyPrefix)] = &state
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan alert states: %w", err)
	}

	return states, nil
}
