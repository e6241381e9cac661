package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/orris-inc/docpilot/internal/infrastructure/ratelimit"
	"github.com/orris-inc/docpilot/internal/shared/logger"
	"github.com/orris-inc/docpilot/internal/shared/utils"
)

type rpmResolver interface {
	Resolve(ctx context.Context, userID uint) (int, error)
}

// RateLimiter applies the per-user token bucket. Capacity comes from the
// caller's active plan.
type RateLimiter struct {
	limiter  ratelimit.RateLimiter
	resolver rpmResolver
	logger   logger.Interface
}

func NewRateLimiter(limiter ratelimit.RateLimiter, resolver rpmResolver, logger logger.Interface) *RateLimiter {
	return &RateLimiter{
		limiter:  limiter,
		resolver: resolver,
		logger:   logger,
	}
}

// Limit returns a middleware keyed by user:<id>:<group>. Requests without a
// user pass through; RequireAuth runs first on every limited group.
func (rl *RateLimiter) Limit(group string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := utils.GetUserID(c)
		if !ok {
			c.Next()
			return
		}
		ctx := c.Request.Context()

		rpm, err := rl.resolver.Resolve(ctx, userID)
		if err != nil {
			// resolver already fell back to the free tier
			rl.logger.Warnw("failed to resolve plan rate limit", "user_id", userID, "error", err)
		}

		subject := fmt.Sprintf("user:%d:%s", userID, group)
		decision, err := rl.limiter.Allow(ctx, subject, rpm)
		if err != nil {
			rl.logger.Errorw("rate limit check failed", "subject", subject, "error", err)
			utils.ErrorResponse(c, http.StatusServiceUnavailable, "rate limiter unavailable")
			c.Abort()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(int(math.Floor(decision.Remaining))))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfterSeconds()))
			utils.ErrorResponse(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
