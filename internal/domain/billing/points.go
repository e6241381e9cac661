package billing

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// PointAccount is the materialised balance of a user's flows. Version is the
// optimistic concurrency token and increments on every mutation.
type PointAccount struct {
	UserID    uint
	Balance   int64
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NextBalance computes the balance after delta. Only consume is bounded
// below by zero.
func (a *PointAccount) NextBalance(flowType vo.FlowType, delta int64) (int64, error) {
	if err := flowType.ValidateDelta(delta); err != nil {
		return 0, err
	}
	next := a.Balance + delta
	if flowType == vo.FlowTypeConsume && next < 0 {
		return 0, &InsufficientPointsError{UserID: a.UserID, Balance: a.Balance, Requested: -delta}
	}
	return next, nil
}

// PointFlow is one append-only ledger entry.
type PointFlow struct {
	ID             uint
	UserID         uint
	FlowType       vo.FlowType
	Points         int64
	BalanceAfter   int64
	IdempotencyKey *string
	OrderID        *uint
	SubscriptionID *uint
	Reason         string
	CreatedAt      time.Time
}

// FlowCommand asks the ledger to append one flow and move the balance.
type FlowCommand struct {
	UserID         uint
	FlowType       vo.FlowType
	Points         int64
	IdempotencyKey string
	OrderID        *uint
	SubscriptionID *uint
	Reason         string
}

func (c FlowCommand) Validate() error {
	if c.UserID == 0 {
		return fmt.Errorf("user ID is required")
	}
	return c.FlowType.ValidateDelta(c.Points)
}

// GrantKeyForOrder scopes a plan grant to its order so replays with new
// provider event ids cannot credit twice.
func GrantKeyForOrder(orderID uint) string {
	return fmt.Sprintf("grant:order:%d", orderID)
}

func RefundKeyForOrder(orderID uint) string {
	return fmt.Sprintf("refund:order:%d", orderID)
}
