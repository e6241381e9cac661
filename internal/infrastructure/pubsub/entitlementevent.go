package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/goroutine"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const entitlementInvalidationChannel = "docpilot:billing:entitlements:invalidate"

// InvalidationEvent tells every instance to drop process-local entitlement
// and plan-tier state for the listed users.
type InvalidationEvent struct {
	UserIDs    []uint `json:"user_ids"`
	Reason     string `json:"reason,omitempty"`
	InstanceID string `json:"instance_id"`
	Timestamp  int64  `json:"timestamp"`
}

type InvalidationHandler func(ctx context.Context, event InvalidationEvent)

// RedisInvalidationBus fans invalidations out over Redis Pub/Sub.
type RedisInvalidationBus struct {
	client     *redis.Client
	instanceID string
	logger     logger.Interface
}

func NewRedisInvalidationBus(client *redis.Client, instanceID string, logger logger.Interface) *RedisInvalidationBus {
	return &RedisInvalidationBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

func (b *RedisInvalidationBus) PublishInvalidation(ctx context.Context, reason string, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	data, err := json.Marshal(InvalidationEvent{
		UserIDs:    userIDs,
		Reason:     reason,
		InstanceID: b.instanceID,
		Timestamp:  biztime.NowUTC().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation event: %w", err)
	}

	if err := b.client.Publish(ctx, entitlementInvalidationChannel, data).Err(); err != nil {
		b.logger.Errorw("failed to publish entitlement invalidation",
			"users", len(userIDs),
			"reason", reason,
			"error", err,
		)
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Subscribe blocks until ctx ends. Events published by this instance are
// skipped since the publisher already invalidated locally.
func (b *RedisInvalidationBus) Subscribe(ctx context.Context, handler InvalidationHandler) error {
	sub := b.client.Subscribe(ctx, entitlementInvalidationChannel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}
	b.logger.Infow("subscribed to entitlement invalidations", "channel", entitlementInvalidationChannel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				b.logger.Warnw("entitlement invalidation channel closed")
				return nil
			}

			var event InvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warnw("failed to unmarshal invalidation event", "payload", msg.Payload, "error", err)
				continue
			}
			if event.InstanceID == b.instanceID {
				continue
			}

			goroutine.SafeGo(b.logger, "entitlement-invalidation", func() {
				handler(context.Background(), event)
			})
		}
	}
}
