package aggregation

import (
	"context"
	"fmt"
	"sync"

	"github.com/smukkama/air-quality-server/internal/database"
	"github.com/smukkama/air-quality-server/internal/pipeline"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/internal/series"
)

// AQIStore is the part of the database a snapshot is written to
type AQIStore interface {
	SaveHourlyAQI(ctx context.Context, station string, records []pipeline.Record) (int, error)
	SaveForecast(ctx context.Context, run *database.ForecastRun) error
}

// DatabaseSink persists hourly records and forecasts
type DatabaseSink struct {
	store AQIStore
}

// NewDatabaseSink creates a sink writing to store
func NewDatabaseSink(store AQIStore) *DatabaseSink {
	return &DatabaseSink{store: store}
}

func (d *DatabaseSink) Handle(ctx context.Context, snap *Snapshot) error {
	if _, err := d.store.SaveHourlyAQI(ctx, snap.Station, snap.Records); err != nil {
		return fmt.Errorf("failed to save hourly AQI: %w", err)
	}

	forecasts := []struct {
		model string
		fc    *ModelForecast
	}{
		{database.ModelLinear, snap.Linear},
		{database.ModelNARX, snap.NARX},
	}
	for _, f := range forecasts {
		model, fc := f.model, f.fc
		if fc == nil {
			continue
		}
		run := &database.ForecastRun{
			RunID:     snap.RunID,
			Station:   snap.Station,
			Model:     model,
			R2:        fc.R2,
			Values:    fc.Values,
			CreatedAt: snap.ComputedAt,
		}
		if err := d.store.SaveForecast(ctx, run); err != nil {
			return fmt.Errorf("failed to save %s forecast: %w", model, err)
		}
	}
	return nil
}

// Publisher is a keyed message producer
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

// RecordPublisher publishes hourly records to the AQI topic keyed by station. Each
// record goes out once: later refreshes only publish records newer than the last one
// sent, and the first refresh of a station only publishes its latest record.
type RecordPublisher struct {
	producer Publisher

	mu   sync.Mutex
	last map[string]series.Key
}

// NewRecordPublisher creates a publisher sending through producer
func NewRecordPublisher(producer Publisher) *RecordPublisher {
	return &RecordPublisher{producer: producer, last: make(map[string]series.Key)}
}

func (p *RecordPublisher) Handle(ctx context.Context, snap *Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, rec := range p.pending(snap) {
		data, err := protocol.EncodeAQIMessage(&protocol.AQIMessage{
			Station:    snap.Station,
			RunID:      snap.RunID.String(),
			ComputedAt: snap.ComputedAt,
			Record:     rec,
		})
		if err != nil {
			return fmt.Errorf("failed to encode AQI message: %w", err)
		}
		if err := p.producer.Publish(ctx, snap.Station, data); err != nil {
			return err
		}
		p.last[snap.Station] = rec.Key
	}
	return nil
}

func (p *RecordPublisher) pending(snap *Snapshot) []pipeline.Record {
	n := len(snap.Records)
	if n == 0 {
		return nil
	}
	last, seen := p.last[snap.Station]
	if !seen {
		return snap.Records[n-1:]
	}
	for i := n - 1; i >= 0; i-- {
		if snap.Records[i].Key == last {
			return snap.Records[i+1:]
		}
	}
	return snap.Records[n-1:]
}
