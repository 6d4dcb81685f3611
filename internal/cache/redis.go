package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisStore keeps entries in redis under a common key prefix
type RedisStore struct {
	client     *redis.Client
	prefix     string
	defaultTTL time.Duration
	logger     zerolog.Logger
	mu         sync.RWMutex
	closed     bool
}

// NewRedisStore connects to the redis instance at url (redis://host:port/db)
// and pings it before returning
func NewRedisStore(ctx context.Context, url, prefix string, defaultTTL time.Duration, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Redis cache connected")

	return &RedisStore{
		client:     client,
		prefix:     prefix,
		defaultTTL: defaultTTL,
		logger:     logger.With().Str("component", "cache").Logger(),
	}, nil
}

func (s *RedisStore) key(k string) string {
	if s.prefix == "" {
		return k
	}
	return s.prefix + ":" + k
}

// Get returns the cached value or ErrCacheMiss
func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", errors.New("cache is closed")
	}

	val, err := s.client.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Cache get failed")
		return "", fmt.Errorf("cache get failed: %w", err)
	}
	return val, nil
}

// Set stores value. A zero ttl uses the store default.
func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("cache is closed")
	}

	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if err := s.client.Set(ctx, s.key(key), value, ttl).Err(); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Cache set failed")
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Delete removes keys; missing keys are ignored
func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return errors.New("cache is closed")
	}
	if len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.key(k)
	}
	if err := s.client.Del(ctx, full...).Err(); err != nil {
		s.logger.Error().Err(err).Strs("keys", keys).Msg("Cache delete failed")
		return fmt.Errorf("cache delete failed: %w", err)
	}
	return nil
}

// Ping checks the connection
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (s *RedisStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
