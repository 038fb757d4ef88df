package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	redis "github.com/redis/go-redis/v9"
)

// Redis is a KeyValueStore over a shared Redis instance
// (STORE_BACKEND=redis). SETNX gives SetIfAbsent its atomicity, so the
// win-flag guarantee holds across multiple service processes.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedisFromEnv builds a client from REDIS_ADDR / REDIS_PASS / REDIS_DB and
// verifies connectivity with a ping.
func NewRedisFromEnv(ctx context.Context) (*Redis, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, errors.New("REDIS_ADDR is not set")
	}
	opts := &redis.Options{Addr: addr}
	if p := os.Getenv("REDIS_PASS"); p != "" {
		opts.Password = p
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		var dbn int
		_, _ = fmt.Sscanf(dbStr, "%d", &dbn)
		opts.DB = dbn
	}
	rc := redis.NewClient(opts)
	if err := rc.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Redis{client: rc, prefix: "souvenir:"}, nil
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client, prefix: "souvenir:"}
}

func (s *Redis) key(k string) string { return s.prefix + k }

func (s *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, key string, value []byte) error {
	return s.client.Set(ctx, s.key(key), value, 0).Err()
}

func (s *Redis) Delete(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.key(key)).Err()
}

func (s *Redis) SetIfAbsent(ctx context.Context, key string, value []byte) (bool, error) {
	return s.client.SetNX(ctx, s.key(key), value, 0).Result()
}
