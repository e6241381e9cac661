package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const (
	entitlementKeyPrefix  = "billing:entitlements:user:"
	defaultEntitlementTTL = 5 * time.Minute

	// generationStripes bounds the invalidation counters. Users sharing a
	// stripe only lose a cache write to each other's invalidations.
	generationStripes = 256
)

// EntitlementLoader resolves a user's entitlements from the ledger.
type EntitlementLoader interface {
	LoadEntitlements(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error)
}

// EntitlementCache is a read-through cache from user id to resolved
// entitlements. Concurrent misses for one user share a single load.
// Store failures degrade to loading from the ledger. A load that overlaps an
// Invalidate for the same user never leaves its result in the store.
type EntitlementCache struct {
	store  Store
	loader EntitlementLoader
	ttl    time.Duration
	group  singleflight.Group
	gens   [generationStripes]atomic.Uint64
	logger logger.Interface
}

func NewEntitlementCache(store Store, loader EntitlementLoader, ttl time.Duration, log logger.Interface) *EntitlementCache {
	if ttl <= 0 {
		ttl = defaultEntitlementTTL
	}
	return &EntitlementCache{
		store:  store,
		loader: loader,
		ttl:    ttl,
		logger: log,
	}
}

func entitlementKey(userID uint) string {
	return entitlementKeyPrefix + strconv.FormatUint(uint64(userID), 10)
}

func (c *EntitlementCache) generation(userID uint) *atomic.Uint64 {
	return &c.gens[uint64(userID)%generationStripes]
}

func (c *EntitlementCache) Get(ctx context.Context, userID uint) (*billing.ResolvedEntitlements, error) {
	key := entitlementKey(userID)

	if data, ok, err := c.store.Get(ctx, key); err != nil {
		c.logger.Warnw("entitlement cache read failed", "user_id", userID, "error", err)
	} else if ok {
		var cached billing.ResolvedEntitlements
		if err := json.Unmarshal(data, &cached); err == nil {
			return &cached, nil
		}
		c.logger.Warnw("discarding undecodable entitlement cache entry", "user_id", userID)
	}

	v, err, _ := c.group.Do(key, func() (interface{}, error) {
		gen := c.generation(userID)
		started := gen.Load()

		resolved, err := c.loader.LoadEntitlements(ctx, userID)
		if err != nil {
			return nil, err
		}
		if gen.Load() != started {
			c.logger.Debugw("skipping entitlement cache write after invalidation", "user_id", userID)
			return resolved, nil
		}
		data, err := json.Marshal(resolved)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entitlements: %w", err)
		}
		if err := c.store.Set(ctx, key, data, c.ttl); err != nil {
			c.logger.Warnw("entitlement cache write failed", "user_id", userID, "error", err)
			return resolved, nil
		}
		// An Invalidate that ran between the check and the write has already
		// issued its delete, so undo the write here.
		if gen.Load() != started {
			if err := c.store.Delete(ctx, key); err != nil {
				c.logger.Warnw("entitlement cache rollback failed", "user_id", userID, "error", err)
			}
		}
		return resolved, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*billing.ResolvedEntitlements), nil
}

// Invalidate drops the cached entries of the given users.
func (c *EntitlementCache) Invalidate(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		c.generation(id).Add(1)
		keys = append(keys, entitlementKey(id))
		c.group.Forget(entitlementKey(id))
	}
	return c.store.Delete(ctx, keys...)
}
