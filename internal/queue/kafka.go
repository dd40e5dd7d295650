package queue

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/smukkama/air-quality-server/pkg/logging"
)

// ErrRetry marks a handler failure whose message must stay uncommitted
var ErrRetry = errors.New("message left uncommitted for retry")

// Producer publishes station-keyed messages to one topic
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a synchronous producer. Every message of a station lands on the
// same partition, so per-station order is kept end to end.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     stationBalancer{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Publish writes one message keyed by station
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: value})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.writer.Topic, err)
	}
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.writer.Close()
}

// stationBalancer routes a message by its station key
type stationBalancer struct{}

func (stationBalancer) Balance(msg kafka.Message, partitions ...int) int {
	return partitions[PartitionForStation(string(msg.Key), len(partitions))]
}

// PartitionForStation returns the index of the partition a station's messages land on
func PartitionForStation(station string, numPartitions int) int {
	if numPartitions <= 0 {
		return 0
	}
	return int(crc32.ChecksumIEEE([]byte(station)) % uint32(numPartitions))
}

// Consumer reads a topic as part of a consumer group. Offsets are only committed
// through Commit.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a group consumer. A group without committed offsets starts at the
// oldest retained message when fromStart is set, at new messages otherwise.
func NewConsumer(brokers []string, topic, groupID string, fromStart bool) *Consumer {
	start := kafka.LastOffset
	if fromStart {
		start = kafka.FirstOffset
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     brokers,
			Topic:       topic,
			GroupID:     groupID,
			MinBytes:    1,
			MaxBytes:    10e6,
			StartOffset: start,
		}),
	}
}

// Consume blocks for the next message without committing it
func (c *Consumer) Consume(ctx context.Context) (kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to fetch message: %w", err)
	}
	return msg, nil
}

// Commit commits the offsets of msgs
func (c *Consumer) Commit(ctx context.Context, msgs ...kafka.Message) error {
	if err := c.reader.CommitMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("failed to commit message: %w", err)
	}
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) Stats() kafka.ReaderStats {
	return c.reader.Stats()
}

// Handler processes one message. Returning an error wrapping ErrRetry leaves the
// message uncommitted; any other result commits it.
type Handler func(ctx context.Context, msg kafka.Message) error

// Process feeds every message of src to handle until ctx is done
func Process(ctx context.Context, src MessageSource, handle Handler, logger *zap.SugaredLogger) {
	logger = logging.OrNop(logger)
	for {
		msg, err := src.Consume(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warnw("Failed to consume message", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		if err := handle(ctx, msg); err != nil {
			logger.Warnw("Failed to handle message",
				"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "error", err)
			if errors.Is(err, ErrRetry) {
				continue
			}
		}

		if err := src.Commit(ctx, msg); err != nil {
			logger.Warnw("Failed to commit offset", "offset", msg.Offset, "error", err)
		}
	}
}

// EnsureTopics creates the given topics through the cluster controller. Topics that
// already exist are left as they are.
func EnsureTopics(brokers []string, topics ...kafka.TopicConfig) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}
	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	if err := controllerConn.CreateTopics(topics...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topics: %w", err)
	}
	return nil
}

// Topic describes a topic to create with replication factor 1
func Topic(name string, partitions int) kafka.TopicConfig {
	if partitions < 1 {
		partitions = 1
	}
	return kafka.TopicConfig{Topic: name, NumPartitions: partitions, ReplicationFactor: 1}
}
