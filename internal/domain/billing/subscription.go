package billing

import (
	"fmt"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// Subscription is the entitlement window bought by a paid order. A user has
// at most one active, unexpired subscription; the query layer enforces it.
type Subscription struct {
	id        uint
	userID    uint
	planID    uint
	orderID   *uint
	status    vo.SubscriptionStatus
	startsAt  time.Time
	expiresAt time.Time
	autoRenew bool
	createdAt time.Time
	updatedAt time.Time
}

type SubscriptionReconstructParams struct {
	ID        uint
	UserID    uint
	PlanID    uint
	OrderID   *uint
	Status    vo.SubscriptionStatus
	StartsAt  time.Time
	ExpiresAt time.Time
	AutoRenew bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSubscription(userID, planID, orderID uint, startsAt time.Time, cycle vo.BillingCycle) (*Subscription, error) {
	if userID == 0 || planID == 0 {
		return nil, fmt.Errorf("user ID and plan ID are required")
	}
	if !cycle.IsValid() {
		return nil, fmt.Errorf("invalid billing cycle: %s", cycle)
	}
	var oid *uint
	if orderID != 0 {
		oid = &orderID
	}
	return &Subscription{
		userID:    userID,
		planID:    planID,
		orderID:   oid,
		status:    vo.SubscriptionStatusActive,
		startsAt:  startsAt,
		expiresAt: startsAt.Add(cycle.Duration()),
		createdAt: startsAt,
		updatedAt: startsAt,
	}, nil
}

func ReconstructSubscription(p SubscriptionReconstructParams) *Subscription {
	return &Subscription{
		id:        p.ID,
		userID:    p.UserID,
		planID:    p.PlanID,
		orderID:   p.OrderID,
		status:    p.Status,
		startsAt:  p.StartsAt,
		expiresAt: p.ExpiresAt,
		autoRenew: p.AutoRenew,
		createdAt: p.CreatedAt,
		updatedAt: p.UpdatedAt,
	}
}

func (s *Subscription) ID() uint                      { return s.id }
func (s *Subscription) UserID() uint                  { return s.userID }
func (s *Subscription) PlanID() uint                  { return s.planID }
func (s *Subscription) OrderID() *uint                { return s.orderID }
func (s *Subscription) Status() vo.SubscriptionStatus { return s.status }
func (s *Subscription) StartsAt() time.Time           { return s.startsAt }
func (s *Subscription) ExpiresAt() time.Time          { return s.expiresAt }
func (s *Subscription) AutoRenew() bool               { return s.autoRenew }
func (s *Subscription) CreatedAt() time.Time          { return s.createdAt }
func (s *Subscription) UpdatedAt() time.Time          { return s.updatedAt }

func (s *Subscription) SetID(id uint) { s.id = id }

// IsActiveAt reports whether the subscription grants entitlements at now.
func (s *Subscription) IsActiveAt(now time.Time) bool {
	return s.status == vo.SubscriptionStatusActive && now.Before(s.expiresAt)
}

// Reset restarts the window at now for the given plan and order.
func (s *Subscription) Reset(planID, orderID uint, now time.Time, cycle vo.BillingCycle) error {
	if s.status != vo.SubscriptionStatusActive {
		return &StateError{Entity: "subscription", From: s.status.String(), To: "renewed"}
	}
	s.planID = planID
	s.orderID = &orderID
	s.startsAt = now
	s.expiresAt = now.Add(cycle.Duration())
	s.updatedAt = now
	return nil
}

// Extend adds one cycle to the current expiry, or to now when the window has
// already lapsed.
func (s *Subscription) Extend(orderID uint, now time.Time, cycle vo.BillingCycle) error {
	if s.status != vo.SubscriptionStatusActive {
		return &StateError{Entity: "subscription", From: s.status.String(), To: "extended"}
	}
	base := s.expiresAt
	if base.Before(now) {
		base = now
	}
	s.orderID = &orderID
	s.expiresAt = base.Add(cycle.Duration())
	s.updatedAt = now
	return nil
}

// Expire is idempotent for already-expired subscriptions.
func (s *Subscription) Expire(now time.Time) error {
	switch s.status {
	case vo.SubscriptionStatusExpired:
		return nil
	case vo.SubscriptionStatusActive:
		s.status = vo.SubscriptionStatusExpired
		s.updatedAt = now
		return nil
	default:
		return &StateError{Entity: "subscription", From: s.status.String(), To: vo.SubscriptionStatusExpired.String()}
	}
}

// Cancel ends the subscription immediately, e.g. when superseded or refunded.
func (s *Subscription) Cancel(now time.Time) error {
	switch s.status {
	case vo.SubscriptionStatusCanceled:
		return nil
	case vo.SubscriptionStatusActive:
		s.status = vo.SubscriptionStatusCanceled
		if now.Before(s.expiresAt) {
			s.expiresAt = now
		}
		s.updatedAt = now
		return nil
	default:
		return &StateError{Entity: "subscription", From: s.status.String(), To: vo.SubscriptionStatusCanceled.String()}
	}
}
