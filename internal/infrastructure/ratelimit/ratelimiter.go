// Package ratelimit implements token-bucket admission control keyed by
// subject strings such as "user:42:recommendations".
package ratelimit

import (
	"context"
	"time"
)

// refillPeriod is the window over which an empty bucket refills to capacity,
// i.e. capacity is a requests-per-minute figure.
const refillPeriod = time.Minute

// minBucketTTL bounds how long idle bucket state is retained.
const minBucketTTL = 120 * time.Second

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  float64
	RetryAfter time.Duration
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds for headers.
func (d *Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 0
	}
	secs := int(d.RetryAfter / time.Second)
	if d.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

type RateLimiter interface {
	// Allow spends cost tokens from subject's bucket of the given capacity.
	Allow(ctx context.Context, subject string, capacity int) (*Decision, error)
}
