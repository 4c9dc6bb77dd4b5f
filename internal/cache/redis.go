package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"vidfetch/pkg/models"
)

const redisKeyPrefix = "vidfetch:meta:"

// RedisStore keeps metadata in Redis and lets Redis expire it
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedisStore connects to addr and verifies the connection with PING
func NewRedisStore(ctx context.Context, opts *redis.Options, ttl time.Duration, logger *slog.Logger) (*RedisStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}

	return &RedisStore{client: client, ttl: ttl, logger: logger}, nil
}

// Get returns the stored metadata for url
func (s *RedisStore) Get(ctx context.Context, url string) (*models.VideoMetadata, bool) {
	data, err := s.client.Get(ctx, redisKeyPrefix+url).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("redis get failed", "url", url, "error", err)
		}
		return nil, false
	}

	var meta models.VideoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.logger.Warn("dropping undecodable cache entry", "url", url, "error", err)
		s.Evict(ctx, url)
		return nil, false
	}

	return &meta, true
}

// Put stores meta for url with the configured TTL
func (s *RedisStore) Put(ctx context.Context, url string, meta *models.VideoMetadata) {
	data, err := json.Marshal(meta)
	if err != nil {
		s.logger.Warn("failed to encode cache entry", "url", url, "error", err)
		return
	}

	if err := s.client.Set(ctx, redisKeyPrefix+url, data, s.ttl).Err(); err != nil {
		s.logger.Warn("redis set failed", "url", url, "error", err)
	}
}

// Evict removes the entry for url
func (s *RedisStore) Evict(ctx context.Context, url string) {
	if err := s.client.Del(ctx, redisKeyPrefix+url).Err(); err != nil {
		s.logger.Warn("redis del failed", "url", url, "error", err)
	}
}

// Close releases the underlying connection pool
func (s *RedisStore) Close() error {
	return s.client.Close()
}
