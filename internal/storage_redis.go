package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lychee-technology/norma"
)

// RedisStorage keeps one JSON document per storage key under a common key
// prefix. An optional TTL lets cache-like deployments expire settings.
type RedisStorage struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(ctx context.Context, cfg norma.RedisConfig) (*RedisStorage, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       cfg.Addr,
		Password:   cfg.Password,
		DB:         cfg.DB,
		MaxRetries: cfg.MaxRetries,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisStorageWithClient(client, cfg.KeyPrefix, cfg.TTL), nil
}

// NewRedisStorageWithClient wraps a pre-configured client. Useful for
// testing with miniredis.
func NewRedisStorageWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, keyPrefix: keyPrefix, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context, key string) (norma.NormalizedRepresentation, error) {
	raw, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return norma.NormalizedRepresentation{}, nil
		}
		return nil, norma.NewStorageError(fmt.Sprintf("failed to read settings for key '%s'", key), err)
	}

	data := make(map[string]any)
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, norma.NewStorageError(fmt.Sprintf("failed to decode settings for key '%s'", key), err)
	}
	return norma.NormalizedRepresentation(data), nil
}

func (s *RedisStorage) Save(ctx context.Context, key string, data norma.NormalizedRepresentation) error {
	raw, err := json.Marshal(map[string]any(data))
	if err != nil {
		return norma.NewStorageError("failed to serialize settings document", err)
	}
	if err := s.client.Set(ctx, s.redisKey(key), raw, s.ttl).Err(); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to write settings for key '%s'", key), err)
	}
	return nil
}

func (s *RedisStorage) Keys(ctx context.Context) ([]string, error) {
	redisKeys, err := s.client.Keys(ctx, s.keyPrefix+"*").Result()
	if err != nil {
		return nil, norma.NewStorageError("failed to list settings keys", err)
	}
	keys := make([]string, 0, len(redisKeys))
	for _, k := range redisKeys {
		keys = append(keys, strings.TrimPrefix(k, s.keyPrefix))
	}
	return keys, nil
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return norma.NewStorageError(fmt.Sprintf("failed to delete settings for key '%s'", key), err)
	}
	return nil
}

// Ping checks connectivity, e.g. for health checks.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (s *RedisStorage) Close() error {
	return s.client.Close()
}

func (s *RedisStorage) redisKey(key string) string {
	return s.keyPrefix + key
}
