package alarming

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/aqi"
	"github.com/smukkama/air-quality-server/internal/database"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/internal/series"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

// AlertLogStore records raised and cleared alerts
type AlertLogStore interface {
	InsertAlertLog(ctx context.Context, alert *database.AlertLog) error
	UpdateAlertLogCleared(ctx context.Context, alertID int64, endTime time.Time) error
}

// Publisher sends encoded alert notifications
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// Evaluator raises an alert once a station stays at or above the threshold level
// for the configured number of consecutive hours
type Evaluator struct {
	threshold aqi.Level
	hours     int

	states    StateStore
	alertLog  AlertLogStore
	publisher Publisher
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewEvaluator creates a new AQI alert evaluator
func NewEvaluator(threshold aqi.Level, hours int, states StateStore, alertLog AlertLogStore, publisher Publisher, logger *zap.SugaredLogger) (*Evaluator, error) {
	if threshold.Severity() < 0 {
		return nil, fmt.Errorf("unknown alert level: %q", threshold)
	}
	if hours < 1 {
		return nil, fmt.Errorf("alert hours must be positive, got %d", hours)
	}
	return &Evaluator{
		threshold: threshold,
		hours:     hours,
		states:    states,
		alertLog:  alertLog,
		publisher: publisher,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}, nil
}

// Evaluate advances the station state with one hourly record. Records without an AQI
// and records not newer than the last one seen leave the state untouched.
func (e *Evaluator) Evaluate(ctx context.Context, msg *protocol.AQIMessage) error {
	rec := msg.Record
	if rec.AQI == nil || rec.Level == nil {
		return nil
	}

	state, err := e.states.GetState(ctx, msg.Station)
	if err != nil {
		return fmt.Errorf("failed to get alert state: %w", err)
	}
	if state.LastKey != "" && !after(rec.Key, state.LastKey) {
		return nil
	}

	if rec.Level.Severity() >= e.threshold.Severity() {
		return e.handleBreach(ctx, msg, state)
	}
	return e.handleNoBreach(ctx, msg, state)
}

func (e *Evaluator) handleBreach(ctx context.Context, msg *protocol.AQIMessage, state *AlertState) error {
	rec := msg.Record
	value := *rec.AQI

	switch state.Status {
	case AlertStatePending:
		if consecutive(state.LastKey, rec.Key) {
			state.Hours++
		} else {
			state.StartKey = rec.Key
			state.StartTime = e.now()
			state.Hours = 1
			state.PeakAQI = value
		}
	case AlertStateActive:
		state.Hours++
	default:
		state = &AlertState{
			Status:    AlertStatePending,
			StartKey:  rec.Key,
			StartTime: e.now(),
			Hours:     1,
			PeakAQI:   value,
		}
	}

	state.LastKey = rec.Key
	state.Level = string(*rec.Level)
	if value > state.PeakAQI {
		state.PeakAQI = value
	}

	if state.Status == AlertStatePending && state.Hours >= e.hours {
		return e.triggerAlert(ctx, msg, state)
	}
	return e.states.SetState(ctx, msg.Station, state)
}

func (e *Evaluator) handleNoBreach(ctx context.Context, msg *protocol.AQIMessage, state *AlertState) error {
	switch state.Status {
	case AlertStateActive:
		return e.clearAlert(ctx, msg, state)
	default:
		// a pending breach that ends early clears silently
		return e.states.SetState(ctx, msg.Station, &AlertState{
			Status:  AlertStateClear,
			LastKey: msg.Record.Key,
		})
	}
}

func (e *Evaluator) triggerAlert(ctx context.Context, msg *protocol.AQIMessage, state *AlertState) error {
	e.logger.Warnw("AQI alert triggered",
		"station", msg.Station, "level", state.Level, "aqi", *msg.Record.AQI,
		"hours", state.Hours, "start", state.StartKey)

	alertLog := &database.AlertLog{
		Station:   msg.Station,
		Level:     state.Level,
		AQI:       state.PeakAQI,
		Hours:     state.Hours,
		StartKey:  state.StartKey,
		StartTime: state.StartTime,
		Status:    database.AlertStatusActive,
	}
	if err := e.alertLog.InsertAlertLog(ctx, alertLog); err != nil {
		return fmt.Errorf("failed to insert alert log: %w", err)
	}

	state.Status = AlertStateActive
	state.AlertID = alertLog.AlertID
	if err := e.states.SetState(ctx, msg.Station, state); err != nil {
		return err
	}

	return e.sendNotification(ctx, &protocol.AlertNotification{
		Type:      protocol.AlertTypeTriggered,
		Station:   msg.Station,
		Level:     state.Level,
		Threshold: string(e.threshold),
		AQI:       *msg.Record.AQI,
		Hours:     state.Hours,
		StartKey:  string(state.StartKey),
		LatestKey: string(state.LastKey),
		StartTime: state.StartTime,
		AlertID:   alertLog.AlertID,
	})
}

func (e *Evaluator) clearAlert(ctx context.Context, msg *protocol.AQIMessage, state *AlertState) error {
	e.logger.Infow("AQI alert cleared", "station", msg.Station, "aqi", *msg.Record.AQI, "hours", state.Hours)

	if state.AlertID > 0 {
		if err := e.alertLog.UpdateAlertLogCleared(ctx, state.AlertID, e.now()); err != nil {
			return fmt.Errorf("failed to update alert log: %w", err)
		}
	}

	if err := e.states.SetState(ctx, msg.Station, &AlertState{
		Status:  AlertStateClear,
		LastKey: msg.Record.Key,
	}); err != nil {
		return err
	}

	return e.sendNotification(ctx, &protocol.AlertNotification{
		Type:      protocol.AlertTypeCleared,
		Station:   msg.Station,
		Level:     string(*msg.Record.Level),
		Threshold: string(e.threshold),
		AQI:       *msg.Record.AQI,
		Hours:     state.Hours,
		StartKey:  string(state.StartKey),
		LatestKey: string(msg.Record.Key),
		StartTime: state.StartTime,
		AlertID:   state.AlertID,
	})
}

func (e *Evaluator) sendNotification(ctx context.Context, notification *protocol.AlertNotification) error {
	data, err := protocol.EncodeAlertNotification(notification)
	if err != nil {
		return fmt.Errorf("failed to encode notification: %w", err)
	}
	return e.publisher.Publish(ctx, notification.Station, data)
}

// after reports whether a is later than b, by time when both keys parse
func after(a, b series.Key) bool {
	ta, okA := a.Time()
	tb, okB := b.Time()
	if okA && okB {
		return ta.After(tb)
	}
	return a > b
}

// consecutive reports whether next is exactly one hour after prev
func consecutive(prev, next series.Key) bool {
	tp, okP := prev.Time()
	tn, okN := next.Time()
	if !okP || !okN {
		return false
	}
	return tn.Sub(tp) == time.Hour
}
