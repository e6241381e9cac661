package usecases

import (
	"context"
	"strconv"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const defaultRelayBatch = 50

// RelayOutboxUseCase publishes committed outbox events. Delivery is at
// least once; consumers dedupe on the event key and type.
type RelayOutboxUseCase struct {
	outbox    billing.OutboxRepository
	publisher EventPublisher
	batch     int
	now       biztime.Clock
	logger    logger.Interface
}

func NewRelayOutboxUseCase(outbox billing.OutboxRepository, publisher EventPublisher, logger logger.Interface) *RelayOutboxUseCase {
	return &RelayOutboxUseCase{
		outbox:    outbox,
		publisher: publisher,
		batch:     defaultRelayBatch,
		now:       biztime.SystemClock,
		logger:    logger,
	}
}

func (uc *RelayOutboxUseCase) Execute(ctx context.Context) (int, error) {
	pending, err := uc.outbox.FetchPending(ctx, uc.batch)
	if err != nil {
		return 0, err
	}

	published := 0
	for _, msg := range pending {
		if err := uc.publisher.Publish(ctx, msg.Event); err != nil {
			uc.logger.Warnw("failed to publish outbox event",
				"outbox_id", msg.ID,
				"type", msg.Event.Type,
				"attempts", msg.Attempts+1,
				"error", err,
			)
			if markErr := uc.outbox.MarkFailed(ctx, msg.ID, err.Error()); markErr != nil {
				return published, markErr
			}
			continue
		}
		if err := uc.outbox.MarkPublished(ctx, msg.ID, uc.now()); err != nil {
			return published, err
		}
		published++
	}
	return published, nil
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
