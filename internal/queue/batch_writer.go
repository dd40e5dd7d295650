package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/internal/database"
	"github.com/smukkama/air-quality-server/internal/protocol"
	"github.com/smukkama/air-quality-server/pkg/logging"
)

// MessageSource is a Kafka reader with manual commits
type MessageSource interface {
	Consume(ctx context.Context) (kafka.Message, error)
	Commit(ctx context.Context, msgs ...kafka.Message) error
}

// ReadingStore persists station readings
type ReadingStore interface {
	UpsertStation(ctx context.Context, st *database.Station) error
	InsertReadings(ctx context.Context, readings []*database.Reading) error
}

// BatchWriter consumes station readings from Kafka and writes them to the database in
// batches. Offsets are committed only after the batch is stored.
type BatchWriter struct {
	consumer      MessageSource
	store         ReadingStore
	batchSize     int
	flushInterval time.Duration
	logger        *zap.SugaredLogger

	stations map[string]string
	cancel   context.CancelFunc
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(consumer MessageSource, store ReadingStore, batchSize int, flushInterval time.Duration, logger *zap.SugaredLogger) *BatchWriter {
	if batchSize < 1 {
		batchSize = 1
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}
	return &BatchWriter{
		consumer:      consumer,
		store:         store,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		logger:        logging.OrNop(logger),
		stations:      make(map[string]string),
		stopCh:        make(chan struct{}),
	}
}

// Start begins consuming and writing to database
func (bw *BatchWriter) Start(ctx context.Context) {
	ctx, bw.cancel = context.WithCancel(ctx)
	msgCh := make(chan kafka.Message, bw.batchSize)

	bw.wg.Add(2)
	go bw.consume(ctx, msgCh)
	go bw.run(ctx, msgCh)
}

// Stop flushes the pending batch and waits for the writer to exit
func (bw *BatchWriter) Stop() {
	close(bw.stopCh)
	if bw.cancel != nil {
		bw.cancel()
	}
	bw.wg.Wait()
}

func (bw *BatchWriter) consume(ctx context.Context, msgCh chan<- kafka.Message) {
	defer bw.wg.Done()
	for {
		msg, err := bw.consumer.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			select {
			case <-bw.stopCh:
				return
			default:
			}
			bw.logger.Warnw("Consumer error", "error", err)
			time.Sleep(100 * time.Millisecond)
			continue
		}
		select {
		case msgCh <- msg:
		case <-bw.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (bw *BatchWriter) run(ctx context.Context, msgCh <-chan kafka.Message) {
	defer bw.wg.Done()

	var batch []kafka.Message
	ticker := time.NewTicker(bw.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-bw.stopCh:
			for drained := false; !drained; {
				select {
				case msg := <-msgCh:
					batch = append(batch, msg)
				default:
					drained = true
				}
			}
			// Stored with a fresh context: the consumer context is usually canceled by now
			bw.flush(context.Background(), batch)
			return

		case <-ticker.C:
			if len(batch) > 0 {
				bw.logger.Debugw("Flush interval reached", "messages", len(batch))
				bw.flush(ctx, batch)
				batch = nil
			}

		case msg := <-msgCh:
			batch = append(batch, msg)
			if len(batch) >= bw.batchSize {
				bw.flush(ctx, batch)
				batch = nil
			}
		}
	}
}

// flush stores a batch and commits it. Undecodable messages are logged and committed
// with the batch so they are not redelivered forever.
func (bw *BatchWriter) flush(ctx context.Context, batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}

	readings := make([]*database.Reading, 0, len(batch))
	for _, msg := range batch {
		r, err := bw.decode(ctx, msg)
		if err != nil {
			bw.logger.Warnw("Dropping reading", "partition", msg.Partition, "offset", msg.Offset, "error", err)
			continue
		}
		readings = append(readings, r)
	}

	if err := bw.store.InsertReadings(ctx, readings); err != nil {
		bw.logger.Errorw("Failed to store batch", "messages", len(batch), "error", err)
		return
	}
	if err := bw.consumer.Commit(ctx, batch...); err != nil {
		bw.logger.Errorw("Failed to commit offsets", "error", err)
		return
	}

	bw.logger.Infow("Flushed batch", "stored", len(readings), "messages", len(batch))
}

func (bw *BatchWriter) decode(ctx context.Context, msg kafka.Message) (*database.Reading, error) {
	sr, err := protocol.DecodeStationReading(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message: %w", err)
	}
	p, reading, err := sr.Data.Reading()
	if err != nil {
		return nil, fmt.Errorf("failed to parse reading: %w", err)
	}
	if err := bw.ensureStation(ctx, sr.Station, sr.Name); err != nil {
		return nil, err
	}

	return &database.Reading{
		Station:    sr.Station,
		Pollutant:  string(p),
		Key:        reading.Key,
		Value:      reading.Value,
		ReceivedAt: sr.ReceivedAt,
	}, nil
}

// ensureStation upserts a station the first time it is seen or when its name changes
func (bw *BatchWriter) ensureStation(ctx context.Context, id, name string) error {
	if known, ok := bw.stations[id]; ok && known == name {
		return nil
	}
	if err := bw.store.UpsertStation(ctx, &database.Station{ID: id, Name: name}); err != nil {
		return fmt.Errorf("failed to upsert station %s: %w", id, err)
	}
	bw.stations[id] = name
	return nil
}
