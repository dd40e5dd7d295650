package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/smukkama/air-quality-server/internal/aggregation"
)

// SnapshotCache keeps the latest snapshot of every station in Redis
type SnapshotCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewSnapshotCache creates a cache whose entries expire after ttl, zero keeps them forever
func NewSnapshotCache(client *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{redis: client, ttl: ttl}
}

func snapshotKey(station string) string {
	return fmt.Sprintf("aqi_snapshot:%s", station)
}

func encodeSnapshot(snap *aggregation.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (*aggregation.Snapshot, error) {
	var snap aggregation.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// Put stores a snapshot
func (c *SnapshotCache) Put(ctx context.Context, snap *aggregation.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if err := c.redis.Set(ctx, snapshotKey(snap.Station), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set snapshot in Redis: %w", err)
	}
	return nil
}

// Handle makes the cache a refresh sink
func (c *SnapshotCache) Handle(ctx context.Context, snap *aggregation.Snapshot) error {
	return c.Put(ctx, snap)
}

// Get returns the cached snapshot of a station, aggregation.ErrNoSnapshot if absent or expired
func (c *SnapshotCache) Get(ctx context.Context, station string) (*aggregation.Snapshot, error) {
	data, err := c.redis.Get(ctx, snapshotKey(station)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%s: %w", station, aggregation.ErrNoSnapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from Redis: %w", err)
	}
	return decodeSnapshot(data)
}

// Delete drops a station's snapshot
func (c *SnapshotCache) Delete(ctx context.Context, station string) error {
	return c.redis.Del(ctx, snapshotKey(station)).Err()
}
