package usecases

import (
	"context"
	"strings"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/id"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

type PointFlowResult struct {
	Flow    *billing.PointFlow
	Balance int64
	// Applied is false for a replayed idempotency key.
	Applied bool
}

type ConsumePointsCommand struct {
	UserID         uint
	Points         int64
	IdempotencyKey string
	Reason         string
}

type ConsumePointsUseCase struct {
	ledger billing.PointLedger
	logger logger.Interface
}

func NewConsumePointsUseCase(ledger billing.PointLedger, logger logger.Interface) *ConsumePointsUseCase {
	return &ConsumePointsUseCase{ledger: ledger, logger: logger}
}

// Execute spends points. A balance that would go negative is rejected with
// *billing.InsufficientPointsError.
func (uc *ConsumePointsUseCase) Execute(ctx context.Context, cmd ConsumePointsCommand) (*PointFlowResult, error) {
	if cmd.Points <= 0 {
		return nil, apperrors.NewValidationError("points must be positive")
	}
	if strings.TrimSpace(cmd.IdempotencyKey) == "" {
		return nil, apperrors.NewValidationError("idempotency_key is required")
	}

	res, err := uc.ledger.ApplyFlow(ctx, billing.FlowCommand{
		UserID:         cmd.UserID,
		FlowType:       vo.FlowTypeConsume,
		Points:         -cmd.Points,
		IdempotencyKey: "consume:" + cmd.IdempotencyKey,
		Reason:         cmd.Reason,
	})
	if err != nil {
		return nil, err
	}
	return &PointFlowResult{Flow: res.Flow, Balance: res.Flow.BalanceAfter, Applied: res.Applied}, nil
}

type AdjustPointsCommand struct {
	OperatorID     uint
	UserID         uint
	Points         int64
	IdempotencyKey string
	Reason         string
}

type AdjustPointsUseCase struct {
	ledger billing.PointLedger
	logger logger.Interface
}

func NewAdjustPointsUseCase(ledger billing.PointLedger, logger logger.Interface) *AdjustPointsUseCase {
	return &AdjustPointsUseCase{ledger: ledger, logger: logger}
}

// Execute applies a manual correction of either sign. Unlike consume it may
// leave the balance negative.
func (uc *AdjustPointsUseCase) Execute(ctx context.Context, cmd AdjustPointsCommand) (*PointFlowResult, error) {
	if cmd.UserID == 0 {
		return nil, apperrors.NewValidationError("user_id is required")
	}
	if cmd.Points == 0 {
		return nil, apperrors.NewValidationError("points must not be zero")
	}
	if strings.TrimSpace(cmd.Reason) == "" {
		return nil, apperrors.NewValidationError("reason is required")
	}
	key := strings.TrimSpace(cmd.IdempotencyKey)
	if key == "" {
		key = id.NewIdempotencyKey()
	}

	res, err := uc.ledger.ApplyFlow(ctx, billing.FlowCommand{
		UserID:         cmd.UserID,
		FlowType:       vo.FlowTypeAdjust,
		Points:         cmd.Points,
		IdempotencyKey: "adjust:" + key,
		Reason:         cmd.Reason,
	})
	if err != nil {
		return nil, err
	}
	if res.Applied {
		uc.logger.Infow("points adjusted",
			"operator_id", cmd.OperatorID,
			"user_id", cmd.UserID,
			"points", cmd.Points,
			"balance_after", res.Flow.BalanceAfter,
			"reason", cmd.Reason,
		)
	}
	return &PointFlowResult{Flow: res.Flow, Balance: res.Flow.BalanceAfter, Applied: res.Applied}, nil
}

type GetPointBalanceUseCase struct {
	ledger billing.PointLedger
}

func NewGetPointBalanceUseCase(ledger billing.PointLedger) *GetPointBalanceUseCase {
	return &GetPointBalanceUseCase{ledger: ledger}
}

func (uc *GetPointBalanceUseCase) Execute(ctx context.Context, userID uint) (*billing.PointAccount, error) {
	return uc.ledger.GetAccount(ctx, userID)
}

type ListPointFlowsQuery struct {
	UserID   uint
	Page     int
	PageSize int
}

type ListPointFlowsResult struct {
	Flows []*billing.PointFlow
	Total int64
}

type ListPointFlowsUseCase struct {
	ledger billing.PointLedger
}

func NewListPointFlowsUseCase(ledger billing.PointLedger) *ListPointFlowsUseCase {
	return &ListPointFlowsUseCase{ledger: ledger}
}

func (uc *ListPointFlowsUseCase) Execute(ctx context.Context, q ListPointFlowsQuery) (*ListPointFlowsResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = 20
	}
	flows, total, err := uc.ledger.ListFlows(ctx, q.UserID, (q.Page-1)*q.PageSize, q.PageSize)
	if err != nil {
		return nil, err
	}
	return &ListPointFlowsResult{Flows: flows, Total: total}, nil
}
