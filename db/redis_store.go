package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

const scanBatch = 100

// RedisStore keeps payloads in Redis under a namespace prefix. It backs the
// legacy collection that predates the local store.
type RedisStore struct {
	Client *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewRedisStore creates a new RedisStore. Every key is written as prefix+key.
func NewRedisStore(client *redis.Client, prefix string, log zerolog.Logger) *RedisStore {
	return &RedisStore{
		Client: client,
		prefix: prefix,
		log:    log.With().Str("store", "redis").Logger(),
	}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

// Get retrieves the payload stored under key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.Client.Get(ctx, s.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		s.log.Error().Err(err).Str("key", key).Msg("get failed")
		return nil, fmt.Errorf("failed to get %s from Redis: %w", key, err)
	}
	return data, nil
}

// Put stores the payload under key without expiry
func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	if err := s.Client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("put failed")
		return fmt.Errorf("failed to put %s to Redis: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.Client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from Redis: %w", key, err)
	}
	return nil
}

// Clear deletes every key under the store prefix. Keys outside the prefix are left alone.
func (s *RedisStore) Clear(ctx context.Context) error {
	var cursor uint64
	removed := 0
	for {
		keys, next, err := s.Client.Scan(ctx, cursor, s.prefix+"*", scanBatch).Result()
		if err != nil {
			return fmt.Errorf("failed to scan Redis keys: %w", err)
		}
		if len(keys) > 0 {
			pipe := s.Client.Pipeline()
			pipe.Del(ctx, keys...)
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("failed to clear Redis keys: %w", err)
			}
			removed += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	s.log.Info().Int("removed", removed).Msg("cleared store")
	return nil
}

// Close releases the client connection pool
func (s *RedisStore) Close() error {
	return s.Client.Close()
}

// Ping checks that the server answers
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// RedisOptions holds connection settings for InitializeRedisClient
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// InitializeRedisClient creates a Redis client and tests the connection.
// A failed ping is returned alongside the client: the legacy store being
// unreachable must not prevent startup.
func InitializeRedisClient(ctx context.Context, opts RedisOptions, log zerolog.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		return rdb, fmt.Errorf("could not connect to Redis at %s: %w", opts.Addr, err)
	}

	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("connected to Redis")
	return rdb, nil
}
