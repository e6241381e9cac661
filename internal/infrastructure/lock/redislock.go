// Package lock provides a Redis-backed mutual exclusion for jobs that must
// run on one instance at a time.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotAcquired is returned when another holder owns the lock.
var ErrNotAcquired = errors.New("lock held by another owner")

const lockKeyPrefix = "docpilot:lock:"

// releaseScript deletes the key only when it still holds our token, so a
// holder whose lease expired cannot release the next owner's lock.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

type RedisLocker struct {
	client *redis.Client
}

func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: client}
}

// Lease is a held lock. Release is safe to call more than once.
type Lease struct {
	client *redis.Client
	key    string
	token  string
}

// Acquire takes name for ttl or returns ErrNotAcquired.
func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (*Lease, error) {
	key := lockKeyPrefix + name
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", name, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}
	return &Lease{client: l.client, key: key, token: token}, nil
}

func (le *Lease) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, le.client, []string{le.key}, le.token).Err(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// WithLock runs fn while holding name. It reports ran=false without error
// when another instance holds the lock.
func (l *RedisLocker) WithLock(ctx context.Context, name string, ttl time.Duration, fn func(context.Context) error) (ran bool, err error) {
	lease, err := l.Acquire(ctx, name, ttl)
	if errors.Is(err, ErrNotAcquired) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer func() {
		// release on a fresh context so an expired ctx still frees the lock
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if rerr := lease.Release(releaseCtx); rerr != nil && err == nil {
			err = rerr
		}
	}()
	return true, fn(ctx)
}
