package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// ErrStoreRequired is returned when a production limiter cannot reach the
// shared store at construction time.
var ErrStoreRequired = errors.New("rate limiter requires a reachable redis in production")

// tokenBucketScript refills and spends in one round trip. Times are unix
// milliseconds; refill is computed as elapsed*capacity/period so whole
// periods restore whole tokens exactly.
var tokenBucketScript = redis.NewScript(`
	local key = KEYS[1]
	local capacity = tonumber(ARGV[1])
	local period_ms = tonumber(ARGV[2])
	local now_ms = tonumber(ARGV[3])
	local cost = tonumber(ARGV[4])
	local ttl = tonumber(ARGV[5])

	local state = redis.call('HMGET', key, 'tokens', 'ts')
	local tokens = tonumber(state[1])
	local ts = tonumber(state[2])
	local stamp = ARGV[3]
	if tokens == nil or ts == nil then
		tokens = capacity
		ts = now_ms
	end

	local elapsed = now_ms - ts
	if elapsed > 0 then
		tokens = math.min(capacity, tokens + (elapsed * capacity) / period_ms)
	elseif state[2] then
		stamp = state[2]
	end

	local allowed = 0
	local retry = 0
	if tokens >= cost then
		tokens = tokens - cost
		allowed = 1
	else
		retry = math.ceil(((cost - tokens) * period_ms) / (capacity * 1000))
	end

	redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', stamp)
	redis.call('EXPIRE', key, ttl)
	return {allowed, tostring(tokens), retry}
`)

type Options struct {
	Client     *redis.Client
	Prefix     string
	Cost       int
	Production bool
	Clock      biztime.Clock
	Logger     logger.Interface
}

// TokenBucketLimiter prefers the shared Redis script and falls back to
// process-local buckets when Redis errors.
type TokenBucketLimiter struct {
	client   *redis.Client
	prefix   string
	cost     int
	now      biztime.Clock
	local    *LocalBuckets
	logger   logger.Interface
	degraded atomic.Bool
}

// NewTokenBucketLimiter pings the store first. Without a reachable store a
// production limiter is refused; elsewhere it runs on local buckets only.
func NewTokenBucketLimiter(ctx context.Context, opts Options) (*TokenBucketLimiter, error) {
	if opts.Prefix == "" {
		opts.Prefix = "ratelimit"
	}
	if opts.Cost <= 0 {
		opts.Cost = 1
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	clock := opts.Clock.OrSystem()

	l := &TokenBucketLimiter{
		client: opts.Client,
		prefix: opts.Prefix,
		cost:   opts.Cost,
		now:    clock,
		local:  NewLocalBuckets(clock),
		logger: opts.Logger,
	}

	var pingErr error
	if opts.Client == nil {
		pingErr = errors.New("no redis client configured")
	} else {
		pingErr = opts.Client.Ping(ctx).Err()
	}
	if pingErr != nil {
		if opts.Production {
			return nil, fmt.Errorf("%w: %v", ErrStoreRequired, pingErr)
		}
		l.logger.Warnw("rate limiter running on process-local buckets", "error", pingErr)
		l.client = nil
		l.degraded.Store(true)
	}
	return l, nil
}

func (l *TokenBucketLimiter) key(subject string) string {
	return l.prefix + ":" + subject
}

func (l *TokenBucketLimiter) Allow(ctx context.Context, subject string, capacity int) (*Decision, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid bucket capacity %d", capacity)
	}
	key := l.key(subject)

	if l.client != nil {
		d, err := l.allowShared(ctx, key, capacity)
		if err == nil {
			if l.degraded.CompareAndSwap(true, false) {
				l.logger.Infow("rate limiter restored shared store")
			}
			return d, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if l.degraded.CompareAndSwap(false, true) {
			l.logger.Warnw("rate limiter store unavailable, using local buckets", "error", err)
		}
	}
	return l.local.Take(key, capacity, l.cost), nil
}

func (l *TokenBucketLimiter) allowShared(ctx context.Context, key string, capacity int) (*Decision, error) {
	ttl := int64(2 * refillPeriod / time.Second)
	if minTTL := int64(minBucketTTL / time.Second); ttl < minTTL {
		ttl = minTTL
	}

	res, err := tokenBucketScript.Run(ctx, l.client, []string{key},
		capacity,
		refillPeriod.Milliseconds(),
		l.now().UnixMilli(),
		l.cost,
		ttl,
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("token bucket script failed: %w", err)
	}
	if len(res) != 3 {
		return nil, fmt.Errorf("unexpected token bucket reply of length %d", len(res))
	}

	allowed, _ := res[0].(int64)
	retry, _ := res[2].(int64)
	remainingStr, _ := res[1].(string)
	remaining, err := strconv.ParseFloat(remainingStr, 64)
	if err != nil {
		return nil, fmt.Errorf("unexpected token count %q: %w", remainingStr, err)
	}

	return &Decision{
		Allowed:    allowed == 1,
		Limit:      capacity,
		Remaining:  remaining,
		RetryAfter: time.Duration(retry) * time.Second,
	}, nil
}
