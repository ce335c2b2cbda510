package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/faceoff/pkg/logger"
)

// RedisSessionStore keeps each session as one JSON string under
// "<prefix><userID>", refreshed with the configured TTL on every save.
type RedisSessionStore struct {
	client *redis.Client
	opts   storeOptions
}

// NewRedisSessionStore wraps an existing client.
func NewRedisSessionStore(client *redis.Client, opts ...Option) *RedisSessionStore {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &RedisSessionStore{client: client, opts: o}
}

// OpenRedis dials and pings a redis server.
func OpenRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (r *RedisSessionStore) key(userID string) string {
	return r.opts.keyPrefix + userID
}

// Save implements SessionStore.
func (r *RedisSessionStore) Save(ctx context.Context, s Session) (err error) {
	start := time.Now()
	defer func() { observe(backendRedis, "save", start, err) }()

	if s.UserID == "" {
		return ErrEmptyKey
	}
	b, err := encodeSession(s)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(s.UserID), b, r.opts.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session %s: %w", s.UserID, err)
	}
	return nil
}

// Load implements SessionStore.
func (r *RedisSessionStore) Load(ctx context.Context, userID string) (s Session, err error) {
	start := time.Now()
	defer func() { observe(backendRedis, "load", start, err) }()

	b, err := r.client.Get(ctx, r.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("redis get session %s: %w", userID, err)
	}
	return decodeSession(b)
}

// Delete implements SessionStore.
func (r *RedisSessionStore) Delete(ctx context.Context, userID string) (err error) {
	start := time.Now()
	defer func() { observe(backendRedis, "delete", start, err) }()

	n, err := r.client.Del(ctx, r.key(userID)).Result()
	if err != nil {
		return fmt.Errorf("redis del session %s: %w", userID, err)
	}
	if n == 0 {
		return fmt.Errorf("session %q: %w", userID, ErrNotFound)
	}
	return nil
}

// Count implements SessionStore by scanning the key prefix.
func (r *RedisSessionStore) Count(ctx context.Context) int {
	start := time.Now()
	count := 0
	iter := r.client.Scan(ctx, 0, r.opts.keyPrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		count++
	}
	err := iter.Err()
	observe(backendRedis, "count", start, err)
	if err != nil {
		if r.opts.log != nil {
			r.opts.log.Warn(ctx, "redis session count failed", logger.Error(err))
		}
		return 0
	}
	return count
}
