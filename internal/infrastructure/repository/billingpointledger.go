package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"gorm.io/gorm"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/mappers"
	"github.com/orris-inc/docpilot/internal/infrastructure/persistence/models"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
	"github.com/orris-inc/docpilot/internal/shared/db"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const (
	defaultLedgerAttempts   = 5
	defaultLedgerRetryDelay = 20 * time.Millisecond
)

var errVersionConflict = errors.New("point account version changed")

// PointLedgerRepository mutates point balances with a compare-and-swap on
// billing_point_accounts.version. No row locks are taken.
type PointLedgerRepository struct {
	db          *gorm.DB
	maxAttempts int
	retryDelay  time.Duration
	now         biztime.Clock
	logger      logger.Interface
}

type PointLedgerOption func(*PointLedgerRepository)

func WithLedgerRetry(attempts int, delay time.Duration) PointLedgerOption {
	return func(r *PointLedgerRepository) {
		if attempts > 0 {
			r.maxAttempts = attempts
		}
		if delay >= 0 {
			r.retryDelay = delay
		}
	}
}

func NewPointLedgerRepository(db *gorm.DB, log logger.Interface, opts ...PointLedgerOption) *PointLedgerRepository {
	r := &PointLedgerRepository{
		db:          db,
		maxAttempts: defaultLedgerAttempts,
		retryDelay:  defaultLedgerRetryDelay,
		now:         biztime.SystemClock,
		logger:      log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ApplyFlow appends one flow and moves the balance. A command whose
// idempotency key is already recorded returns the recorded flow untouched.
func (r *PointLedgerRepository) ApplyFlow(ctx context.Context, cmd billing.FlowCommand) (*billing.FlowResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid point flow", err.Error())
	}

	if cmd.IdempotencyKey != "" {
		existing, err := r.findFlowByKey(ctx, cmd.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &billing.FlowResult{Flow: existing}, nil
		}
	}

	attempts := 0
	operation := func() (*billing.FlowResult, error) {
		attempts++
		flow, err := r.tryApply(ctx, cmd)
		if err == nil {
			return &billing.FlowResult{Flow: flow, Applied: true}, nil
		}

		if apperrors.IsDuplicateError(err) && cmd.IdempotencyKey != "" {
			existing, ferr := r.findFlowByKey(ctx, cmd.IdempotencyKey)
			if ferr != nil {
				return nil, backoff.Permanent(ferr)
			}
			if existing != nil {
				return &billing.FlowResult{Flow: existing}, nil
			}
			return nil, errVersionConflict
		}
		if errors.Is(err, errVersionConflict) || apperrors.IsDuplicateError(err) {
			return nil, errVersionConflict
		}
		return nil, backoff.Permanent(err)
	}

	result, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(r.retryDelay)),
		backoff.WithMaxTries(uint(r.maxAttempts)),
	)
	if err != nil {
		if errors.Is(err, errVersionConflict) {
			r.logger.Warnw("point ledger conflict, retries exhausted",
				"user_id", cmd.UserID,
				"flow_type", cmd.FlowType,
				"attempts", attempts,
			)
			return nil, &billing.LedgerConflictError{UserID: cmd.UserID, Attempts: attempts}
		}
		return nil, err
	}
	return result, nil
}

// tryApply runs one read-compute-write attempt under a savepoint so a lost
// race also discards the flow row it inserted.
func (r *PointLedgerRepository) tryApply(ctx context.Context, cmd billing.FlowCommand) (*billing.PointFlow, error) {
	var flow *billing.PointFlow
	err := db.GetTxFromContext(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		acct, err := r.loadOrCreateAccount(tx, cmd.UserID)
		if err != nil {
			return err
		}

		next, err := acct.NextBalance(cmd.FlowType, cmd.Points)
		if err != nil {
			return err
		}

		now := r.now()
		model := &models.BillingPointFlowModel{
			UserID:         cmd.UserID,
			FlowType:       cmd.FlowType.String(),
			Points:         cmd.Points,
			BalanceAfter:   next,
			OrderID:        cmd.OrderID,
			SubscriptionID: cmd.SubscriptionID,
			Reason:         cmd.Reason,
			CreatedAt:      now,
		}
		if cmd.IdempotencyKey != "" {
			key := cmd.IdempotencyKey
			model.IdempotencyKey = &key
		}
		if err := tx.Create(model).Error; err != nil {
			return err
		}

		result := tx.Model(&models.BillingPointAccountModel{}).
			Where("user_id = ? AND version = ?", cmd.UserID, acct.Version).
			Updates(map[string]interface{}{
				"balance":    next,
				"version":    gorm.Expr("version + 1"),
				"updated_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errVersionConflict
		}

		flow = mappers.PointFlowToDomain(model)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return flow, nil
}

// loadOrCreateAccount creates a missing account with its balance backfilled
// from the flow history.
func (r *PointLedgerRepository) loadOrCreateAccount(tx *gorm.DB, userID uint) (*billing.PointAccount, error) {
	var model models.BillingPointAccountModel
	err := tx.Where("user_id = ?", userID).First(&model).Error
	if err == nil {
		return mappers.PointAccountToDomain(&model), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to load point account: %w", err)
	}

	var replayed int64
	if err := tx.Model(&models.BillingPointFlowModel{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points), 0)").
		Scan(&replayed).Error; err != nil {
		return nil, fmt.Errorf("failed to replay point flows: %w", err)
	}

	now := r.now()
	model = models.BillingPointAccountModel{UserID: userID, Balance: replayed, CreatedAt: now, UpdatedAt: now}
	createErr := tx.Transaction(func(inner *gorm.DB) error {
		return inner.Create(&model).Error
	})
	if createErr == nil {
		return mappers.PointAccountToDomain(&model), nil
	}
	if !apperrors.IsDuplicateError(createErr) {
		return nil, fmt.Errorf("failed to create point account: %w", createErr)
	}

	if err := tx.Where("user_id = ?", userID).First(&model).Error; err != nil {
		return nil, fmt.Errorf("failed to reload point account: %w", err)
	}
	return mappers.PointAccountToDomain(&model), nil
}

func (r *PointLedgerRepository) findFlowByKey(ctx context.Context, key string) (*billing.PointFlow, error) {
	var model models.BillingPointFlowModel
	err := db.GetTxFromContext(ctx, r.db).Where("idempotency_key = ?", key).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up point flow: %w", err)
	}
	return mappers.PointFlowToDomain(&model), nil
}

// GetAccount lazily creates the account on first read.
func (r *PointLedgerRepository) GetAccount(ctx context.Context, userID uint) (*billing.PointAccount, error) {
	var acct *billing.PointAccount
	err := db.GetTxFromContext(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var err error
		acct, err = r.loadOrCreateAccount(tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func (r *PointLedgerRepository) ListFlows(ctx context.Context, userID uint, offset, limit int) ([]*billing.PointFlow, int64, error) {
	base := func() *gorm.DB {
		return db.GetTxFromContext(ctx, r.db).Model(&models.BillingPointFlowModel{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count point flows: %w", err)
	}

	var rows []models.BillingPointFlowModel
	if err := base().Order("id DESC").Offset(offset).Limit(limit).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list point flows: %w", err)
	}

	flows := make([]*billing.PointFlow, 0, len(rows))
	for i := range rows {
		flows = append(flows, mappers.PointFlowToDomain(&rows[i]))
	}
	return flows, total, nil
}

// SumGrantedForOrder is the amount a refund of the order must reverse.
func (r *PointLedgerRepository) SumGrantedForOrder(ctx context.Context, orderID uint) (int64, error) {
	var sum int64
	if err := db.GetTxFromContext(ctx, r.db).
		Model(&models.BillingPointFlowModel{}).
		Where("order_id = ? AND flow_type = ?", orderID, vo.FlowTypeGrant.String()).
		Select("COALESCE(SUM(points), 0)").
		Scan(&sum).Error; err != nil {
		return 0, fmt.Errorf("failed to sum granted points: %w", err)
	}
	return sum, nil
}
