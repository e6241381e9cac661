package billing

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
)

// Order is one checkout attempt. Only the checkout flow creates orders;
// webhooks only move existing ones between statuses.
type Order struct {
	id              uint
	userID          uint
	planID          uint
	provider        vo.Provider
	externalOrderID string
	idempotencyKey  string
	amount          vo.Money
	status          vo.OrderStatus
	statusReason    string
	providerPayload []byte
	paidAt          *time.Time
	refundedAt      *time.Time
	createdAt       time.Time
	updatedAt       time.Time
}

type OrderReconstructParams struct {
	ID              uint
	UserID          uint
	PlanID          uint
	Provider        vo.Provider
	ExternalOrderID string
	IdempotencyKey  string
	Amount          vo.Money
	Status          vo.OrderStatus
	StatusReason    string
	ProviderPayload []byte
	PaidAt          *time.Time
	RefundedAt      *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func NewOrder(userID, planID uint, provider vo.Provider, externalOrderID, idempotencyKey string, amount vo.Money) (*Order, error) {
	if userID == 0 {
		return nil, fmt.Errorf("user ID is required")
	}
	if planID == 0 {
		return nil, fmt.Errorf("plan ID is required")
	}
	if strings.TrimSpace(externalOrderID) == "" {
		return nil, fmt.Errorf("external order ID is required")
	}
	if strings.TrimSpace(idempotencyKey) == "" {
		return nil, fmt.Errorf("idempotency key is required")
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("amount must not be negative")
	}

	now := biztime.NowUTC()
	return &Order{
		userID:          userID,
		planID:          planID,
		provider:        provider,
		externalOrderID: externalOrderID,
		idempotencyKey:  idempotencyKey,
		amount:          amount,
		status:          vo.OrderStatusPending,
		providerPayload: []byte("{}"),
		createdAt:       now,
		updatedAt:       now,
	}, nil
}

func ReconstructOrder(p OrderReconstructParams) *Order {
	return &Order{
		id:              p.ID,
		userID:          p.UserID,
		planID:          p.PlanID,
		provider:        p.Provider,
		externalOrderID: p.ExternalOrderID,
		idempotencyKey:  p.IdempotencyKey,
		amount:          p.Amount,
		status:          p.Status,
		statusReason:    p.StatusReason,
		providerPayload: p.ProviderPayload,
		paidAt:          p.PaidAt,
		refundedAt:      p.RefundedAt,
		createdAt:       p.CreatedAt,
		updatedAt:       p.UpdatedAt,
	}
}

func (o *Order) ID() uint                { return o.id }
func (o *Order) UserID() uint            { return o.userID }
func (o *Order) PlanID() uint            { return o.planID }
func (o *Order) Provider() vo.Provider   { return o.provider }
func (o *Order) ExternalOrderID() string { return o.externalOrderID }
func (o *Order) IdempotencyKey() string  { return o.idempotencyKey }
func (o *Order) Amount() vo.Money        { return o.amount }
func (o *Order) Status() vo.OrderStatus  { return o.status }
func (o *Order) StatusReason() string    { return o.statusReason }
func (o *Order) ProviderPayload() []byte { return o.providerPayload }
func (o *Order) PaidAt() *time.Time      { return o.paidAt }
func (o *Order) RefundedAt() *time.Time  { return o.refundedAt }
func (o *Order) CreatedAt() time.Time    { return o.createdAt }
func (o *Order) UpdatedAt() time.Time    { return o.updatedAt }

func (o *Order) SetID(id uint) { o.id = id }

// transition moves the order to target. Re-entering target when already
// there is a no-op reported as changed=false.
func (o *Order) transition(target vo.OrderStatus, reason string, at time.Time) (bool, error) {
	if o.status == target {
		return false, nil
	}
	if !o.status.CanTransitionTo(target) {
		return false, &StateError{Entity: "order", From: o.status.String(), To: target.String()}
	}
	o.status = target
	if reason != "" {
		o.statusReason = reason
	}
	o.updatedAt = at
	return true, nil
}

// MarkPaid moves a pending order to paid.
func (o *Order) MarkPaid(at time.Time) (bool, error) {
	changed, err := o.transition(vo.OrderStatusPaid, "", at)
	if changed {
		paidAt := at
		o.paidAt = &paidAt
	}
	return changed, err
}

func (o *Order) MarkCanceled(reason string, at time.Time) (bool, error) {
	return o.transition(vo.OrderStatusCanceled, reason, at)
}

func (o *Order) MarkFailed(reason string, at time.Time) (bool, error) {
	return o.transition(vo.OrderStatusFailed, reason, at)
}

func (o *Order) MarkRefunded(reason string, at time.Time) (bool, error) {
	changed, err := o.transition(vo.OrderStatusRefunded, reason, at)
	if changed {
		refundedAt := at
		o.refundedAt = &refundedAt
	}
	return changed, err
}

// MergeProviderPayload folds patch into the stored payload. See MergePayload.
func (o *Order) MergeProviderPayload(patch map[string]any) error {
	merged, err := MergePayload(o.providerPayload, patch)
	if err != nil {
		return err
	}
	o.providerPayload = merged
	o.updatedAt = biztime.NowUTC()
	return nil
}

// CheckoutSession is the checkout metadata stored under the "checkout" key.
type CheckoutSession struct {
	URL         string    `json:"url"`
	ProviderRef string    `json:"provider_ref,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// CheckoutPayloadKey is the provider_payload key holding CheckoutSession.
const CheckoutPayloadKey = "checkout"

// Checkout returns the stored checkout session, if any.
func (o *Order) Checkout() (*CheckoutSession, bool) {
	var payload struct {
		Checkout *CheckoutSession `json:"checkout"`
	}
	if err := json.Unmarshal(o.providerPayload, &payload); err != nil || payload.Checkout == nil || payload.Checkout.URL == "" {
		return nil, false
	}
	return payload.Checkout, true
}
