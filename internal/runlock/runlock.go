package runlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLocked = errors.New("lock is held by another run")

	// ErrLockLost means the lock expired and another holder may own it now.
	ErrLockLost = errors.New("lock is no longer held")
)

// Lease is a held lock.
type Lease interface {
	// Extend resets the expiry to ttl from now.
	Extend(ctx context.Context, ttl time.Duration) error
	Release(ctx context.Context) error
}

// Locker hands out exclusive, expiring locks by key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// releaseScript deletes the key only while it still holds our token, so a
// run whose lock expired cannot free a lock taken by the next run.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

// extendScript moves the expiry only while the key still holds our token.
const extendScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0`

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type RedisLocker struct {
	client redisClient
	prefix string
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client, prefix: "catalog:lock:"}
}

// NewRedisLockerFromURL connects to redisURL and checks the connection.
func NewRedisLockerFromURL(ctx context.Context, redisURL string) (*RedisLocker, *redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisLocker(client), client, nil
}

func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	token := uuid.New().String()
	fullKey := l.prefix + key

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return &redisLease{client: l.client, name: key, key: fullKey, token: token}, nil
}

type redisLease struct {
	client redisClient
	name   string
	key    string
	token  string
}

func (r *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	n, err := r.client.Eval(ctx, extendScript, []string{r.key}, r.token, ttl.Milliseconds()).Int64()
	if err != nil {
		return fmt.Errorf("failed to extend lock %s: %w", r.name, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrLockLost, r.name)
	}
	return nil
}

func (r *redisLease) Release(ctx context.Context) error {
	if err := r.client.Eval(ctx, releaseScript, []string{r.key}, r.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", r.name, err)
	}
	return nil
}

// NopLocker always grants the lock. Used when no Redis is configured.
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string, time.Duration) (Lease, error) {
	return nopLease{}, nil
}

type nopLease struct{}

func (nopLease) Extend(context.Context, time.Duration) error { return nil }

func (nopLease) Release(context.Context) error { return nil }
