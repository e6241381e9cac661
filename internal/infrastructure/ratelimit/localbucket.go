package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
)

type bucketState struct {
	tokens float64
	last   time.Time
}

// LocalBuckets is the process-local token bucket used when the shared store
// is unavailable. It is only correct within one process.
type LocalBuckets struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	now     biztime.Clock
}

func NewLocalBuckets(clock biztime.Clock) *LocalBuckets {
	return &LocalBuckets{
		buckets: make(map[string]*bucketState),
		now:     clock.OrSystem(),
	}
}

func (l *LocalBuckets) Take(key string, capacity, cost int) *Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucketState{tokens: float64(capacity), last: now}
		l.buckets[key] = b
	}

	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokens = math.Min(float64(capacity), b.tokens+elapsed.Seconds()*float64(capacity)/refillPeriod.Seconds())
		b.last = now
	}

	l.evictIdle(now)

	d := &Decision{Limit: capacity}
	if b.tokens >= float64(cost) {
		b.tokens -= float64(cost)
		d.Allowed = true
	} else {
		missing := float64(cost) - b.tokens
		secs := math.Ceil(missing * refillPeriod.Seconds() / float64(capacity))
		d.RetryAfter = time.Duration(secs) * time.Second
	}
	d.Remaining = b.tokens
	return d
}

// evictIdle drops buckets that have been full for longer than minBucketTTL.
// Called with mu held.
func (l *LocalBuckets) evictIdle(now time.Time) {
	if len(l.buckets) < 1024 {
		return
	}
	for k, b := range l.buckets {
		if now.Sub(b.last) > minBucketTTL {
			delete(l.buckets, k)
		}
	}
}
