package aggregation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/forecast"
	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

// ErrNoSnapshot is returned for a station that has not been refreshed yet
var ErrNoSnapshot = errors.New("no snapshot computed for station")

// ReadingSource loads the raw readings of one station observed at or after since
type ReadingSource interface {
	LoadReadings(ctx context.Context, station string, since time.Time) (pipeline.Input, error)
}

// Sink receives every snapshot a refresh produces
type Sink interface {
	Handle(ctx context.Context, snap *Snapshot) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, snap *Snapshot) error

func (f SinkFunc) Handle(ctx context.Context, snap *Snapshot) error {
	return f(ctx, snap)
}

// ModelForecast is one model's fit and recursive forecast
type ModelForecast struct {
	Model  *forecast.LinearModel `json:"model"`
	R2     float64               `json:"r2"`
	Values []float64             `json:"values"`
}

// Snapshot is the result of one refresh of one station. It is shared between readers
// and must not be modified.
type Snapshot struct {
	Station    string            `json:"station"`
	RunID      uuid.UUID         `json:"run_id"`
	ComputedAt time.Time         `json:"computed_at"`
	Records    []pipeline.Record `json:"records"`
	Linear     *ModelForecast    `json:"linear,omitempty"`
	NARX       *ModelForecast    `json:"narx,omitempty"`
}

// Latest returns the most recent hourly record
func (s *Snapshot) Latest() (pipeline.Record, bool) {
	if len(s.Records) == 0 {
		return pipeline.Record{}, false
	}
	return s.Records[len(s.Records)-1], true
}

// Options configures a Service
type Options struct {
	Stations []string
	Lags     int
	Horizon  int
	// History bounds how far back readings are loaded, zero loads everything
	History time.Duration
}

// Service keeps the latest AQI records and forecasts of each station and recomputes
// them on Refresh. Reads are safe while a refresh runs.
type Service struct {
	source ReadingSource
	opts   Options
	logger *zap.SugaredLogger
	now    func() time.Time

	sinks     []Sink
	refreshMu sync.Mutex

	mu        sync.RWMutex
	snapshots map[string]*Snapshot
}

// NewService creates a service reading from source
func NewService(source ReadingSource, opts Options, logger *zap.SugaredLogger, sinks ...Sink) *Service {
	if opts.Lags < 1 {
		opts.Lags = forecast.DefaultLags
	}
	if opts.Horizon < 1 {
		opts.Horizon = 6
	}
	return &Service{
		source:    source,
		opts:      opts,
		logger:    logging.OrNop(logger),
		now:       time.Now,
		sinks:     sinks,
		snapshots: make(map[string]*Snapshot),
	}
}

// AddSink registers a sink for later refreshes
func (s *Service) AddSink(sink Sink) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// Stations returns the configured stations
func (s *Service) Stations() []string {
	out := make([]string, len(s.opts.Stations))
	copy(out, s.opts.Stations)
	return out
}

// Snapshot returns the cached result of the last successful refresh of station
func (s *Service) Snapshot(station string) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[station]
	if !ok {
		return nil, fmt.Errorf("%s: %w", station, ErrNoSnapshot)
	}
	return snap, nil
}

// Prime caches a snapshot computed elsewhere, e.g. restored from Redis at startup.
// It never replaces a snapshot computed at or after snap.ComputedAt.
func (s *Service) Prime(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.snapshots[snap.Station]; ok && !cur.ComputedAt.Before(snap.ComputedAt) {
		return
	}
	s.snapshots[snap.Station] = snap
}

// Refresh reloads a station's readings, recomputes its hourly AQI, retrains both models
// and replaces the cached snapshot. Too little history for training is not an error:
// the snapshot is stored without forecasts. Sink failures are returned after the
// snapshot has been cached.
func (s *Service) Refresh(ctx context.Context, station string) (*Snapshot, error) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	now := s.now()
	var since time.Time
	if s.opts.History > 0 {
		since = now.Add(-s.opts.History)
	}

	in, err := s.source.LoadReadings(ctx, station, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings for %s: %w", station, err)
	}

	snap := &Snapshot{
		Station:    station,
		RunID:      uuid.New(),
		ComputedAt: now,
		Records:    in.Pipeline().Run(),
	}

	tr := forecast.NewTrainer(snap.Records, s.opts.Lags)
	snap.Linear = s.fit(station, "linear", tr.TrainLinear, tr.PredictLinear, tr.Linear)
	snap.NARX = s.fit(station, "narx", tr.TrainNARX, tr.PredictNARX, tr.NARX)

	s.mu.Lock()
	s.snapshots[station] = snap
	s.mu.Unlock()

	s.logger.Infow("Refreshed station",
		"station", station,
		"run_id", snap.RunID,
		"readings", in.Len(),
		"records", len(snap.Records),
		"forecasts", snap.Linear != nil || snap.NARX != nil,
	)

	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Handle(ctx, snap); err != nil {
			s.logger.Errorw("Sink failed", "station", station, "error", err)
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return snap, fmt.Errorf("failed to publish snapshot for %s: %w", station, err)
	}
	return snap, nil
}

func (s *Service) fit(
	station, name string,
	train func() (float64, error),
	predict func(int) ([]float64, error),
	model func() *forecast.LinearModel,
) *ModelForecast {
	r2, err := train()
	if err != nil {
		s.logger.Warnw("Skipping forecast", "station", station, "model", name, "error", err)
		return nil
	}
	values, err := predict(s.opts.Horizon)
	if err != nil {
		s.logger.Warnw("Forecast failed", "station", station, "model", name, "error", err)
		return nil
	}
	return &ModelForecast{Model: model(), R2: r2, Values: values}
}

// RefreshAll refreshes every configured station, continuing past failures
func (s *Service) RefreshAll(ctx context.Context) error {
	var errs []error
	for _, station := range s.opts.Stations {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Refresh(ctx, station); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
