// Package redis provides a Redis-backed implementation of the anomaly
// store. Records are stored as JSON values under a key prefix, with a
// list tracking recency for List.
package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/terra-constellata/a2a-server-go/storage"
)

// Config contains configuration options for the Redis store.
type Config struct {
	// Client is the Redis client instance.
	Client *redis.Client

	// KeyPrefix is the prefix for all Redis keys.
	// Default: "a2a:anomalies:"
	KeyPrefix string
}

// Store implements storage.AnomalyStore using Redis.
type Store struct {
	client    *redis.Client
	keyPrefix string
}

var _ storage.AnomalyStore = (*Store)(nil)

// New creates a Redis-backed anomaly store.
func New(config Config) (*Store, error) {
	if config.Client == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	if config.KeyPrefix == "" {
		config.KeyPrefix = "a2a:anomalies:"
	}

	return &Store{
		client:    config.Client,
		keyPrefix: config.KeyPrefix,
	}, nil
}

func (s *Store) recordKey(messageID string) string { return s.keyPrefix + "record:" + messageID }
func (s *Store) indexKey() string                  { return s.keyPrefix + "index" }

func (s *Store) Put(ctx context.Context, rec storage.AnomalyRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal anomaly record: %w", err)
	}

	key := s.recordKey(rec.MessageID)

	// SET before the index update so a concurrent List never observes an
	// indexed id with no record behind it.
	existed, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to check key %s: %w", key, err)
	}

	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	if existed > 0 {
		if err := s.client.LRem(ctx, s.indexKey(), 0, rec.MessageID).Err(); err != nil {
			return fmt.Errorf("failed to reindex %s: %w", rec.MessageID, err)
		}
	}

	if err := s.client.LPush(ctx, s.indexKey(), rec.MessageID).Err(); err != nil {
		return fmt.Errorf("failed to index %s: %w", rec.MessageID, err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, messageID string) (*storage.AnomalyRecord, error) {
	result := s.client.Get(ctx, s.recordKey(messageID))
	if result.Err() != nil {
		if result.Err() == redis.Nil {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get record %s: %w", messageID, result.Err())
	}

	var rec storage.AnomalyRecord
	if err := json.Unmarshal([]byte(result.Val()), &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record %s: %w", messageID, err)
	}

	return &rec, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]storage.AnomalyRecord, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.LRange(ctx, s.indexKey(), 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list anomaly index: %w", err)
	}

	out := make([]storage.AnomalyRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Get(ctx, id)
		if err != nil {
			if err == storage.ErrNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, nil
}

// Close closes the underlying Redis client.
func (s *Store) Close() error {
	return s.client.Close()
}
