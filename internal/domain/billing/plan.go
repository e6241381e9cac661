package billing

import (
	"fmt"
	"strings"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/biztime"
)

// Plan is a purchasable tier. Code is its immutable identity; plans are
// deactivated, never deleted.
type Plan struct {
	id            uint
	code          string
	name          string
	description   string
	price         vo.Money
	monthlyPoints int64
	billingCycle  vo.BillingCycle
	trialDays     int
	active        bool
	metadata      map[string]any
	createdAt     time.Time
	updatedAt     time.Time
}

type PlanReconstructParams struct {
	ID            uint
	Code          string
	Name          string
	Description   string
	Price         vo.Money
	MonthlyPoints int64
	BillingCycle  vo.BillingCycle
	TrialDays     int
	Active        bool
	Metadata      map[string]any
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func NewPlan(code, name string, price vo.Money, monthlyPoints int64, cycle vo.BillingCycle) (*Plan, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("plan code is required")
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("plan price must not be negative")
	}
	if monthlyPoints < 0 {
		return nil, fmt.Errorf("monthly points must not be negative")
	}
	if !cycle.IsValid() {
		return nil, fmt.Errorf("invalid billing cycle: %s", cycle)
	}

	now := biztime.NowUTC()
	return &Plan{
		code:          code,
		name:          name,
		price:         price,
		monthlyPoints: monthlyPoints,
		billingCycle:  cycle,
		active:        true,
		metadata:      map[string]any{},
		createdAt:     now,
		updatedAt:     now,
	}, nil
}

func ReconstructPlan(p PlanReconstructParams) *Plan {
	if p.Metadata == nil {
		p.Metadata = map[string]any{}
	}
	return &Plan{
		id:            p.ID,
		code:          p.Code,
		name:          p.Name,
		description:   p.Description,
		price:         p.Price,
		monthlyPoints: p.MonthlyPoints,
		billingCycle:  p.BillingCycle,
		trialDays:     p.TrialDays,
		active:        p.Active,
		metadata:      p.Metadata,
		createdAt:     p.CreatedAt,
		updatedAt:     p.UpdatedAt,
	}
}

func (p *Plan) ID() uint                      { return p.id }
func (p *Plan) Code() string                  { return p.code }
func (p *Plan) Name() string                  { return p.name }
func (p *Plan) Description() string           { return p.description }
func (p *Plan) Price() vo.Money               { return p.price }
func (p *Plan) MonthlyPoints() int64          { return p.monthlyPoints }
func (p *Plan) BillingCycle() vo.BillingCycle { return p.billingCycle }
func (p *Plan) TrialDays() int                { return p.trialDays }
func (p *Plan) IsActive() bool                { return p.active }
func (p *Plan) Metadata() map[string]any      { return p.metadata }
func (p *Plan) CreatedAt() time.Time          { return p.createdAt }
func (p *Plan) UpdatedAt() time.Time          { return p.updatedAt }

func (p *Plan) SetID(id uint) { p.id = id }

// PlanChanges carries the admin-mutable fields. Nil means unchanged.
type PlanChanges struct {
	Name          *string
	Description   *string
	Price         *vo.Money
	MonthlyPoints *int64
	BillingCycle  *vo.BillingCycle
	TrialDays     *int
	Metadata      map[string]any
}

func (p *Plan) Apply(c PlanChanges) error {
	if c.Price != nil && c.Price.IsNegative() {
		return fmt.Errorf("plan price must not be negative")
	}
	if c.MonthlyPoints != nil && *c.MonthlyPoints < 0 {
		return fmt.Errorf("monthly points must not be negative")
	}
	if c.BillingCycle != nil && !c.BillingCycle.IsValid() {
		return fmt.Errorf("invalid billing cycle: %s", *c.BillingCycle)
	}
	if c.TrialDays != nil && *c.TrialDays < 0 {
		return fmt.Errorf("trial days must not be negative")
	}

	if c.Name != nil {
		p.name = *c.Name
	}
	if c.Description != nil {
		p.description = *c.Description
	}
	if c.Price != nil {
		p.price = *c.Price
	}
	if c.MonthlyPoints != nil {
		p.monthlyPoints = *c.MonthlyPoints
	}
	if c.BillingCycle != nil {
		p.billingCycle = *c.BillingCycle
	}
	if c.TrialDays != nil {
		p.trialDays = *c.TrialDays
	}
	if len(c.Metadata) > 0 && p.metadata == nil {
		p.metadata = make(map[string]any, len(c.Metadata))
	}
	for k, v := range c.Metadata {
		p.metadata[k] = v
	}
	p.updatedAt = biztime.NowUTC()
	return nil
}

func (p *Plan) Deactivate() {
	if !p.active {
		return
	}
	p.active = false
	p.updatedAt = biztime.NowUTC()
}

func (p *Plan) Activate() {
	if p.active {
		return
	}
	p.active = true
	p.updatedAt = biztime.NowUTC()
}

// IsFree reports whether the plan grants nothing billable.
func (p *Plan) IsFree() bool {
	return p.price.AmountInCents() == 0 || strings.Contains(strings.ToLower(p.code), "free")
}

// PlanEntitlement is a named feature flag or limit attached to a plan.
// (PlanID, Key) is unique.
type PlanEntitlement struct {
	ID        uint
	PlanID    uint
	Key       string
	Enabled   bool
	Value     string
	Limit     *int64
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (e *PlanEntitlement) Validate() error {
	if e.PlanID == 0 {
		return fmt.Errorf("plan id is required")
	}
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("entitlement key is required")
	}
	if e.Limit != nil && *e.Limit < 0 {
		return fmt.Errorf("entitlement limit must not be negative")
	}
	return nil
}
