package dto

import "time"

type PlanDTO struct {
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	Description     string           `json:"description,omitempty"`
	DescriptionHTML string           `json:"description_html,omitempty"`
	PriceCents      int64            `json:"price_cents"`
	Price           string           `json:"price"`
	Currency        string           `json:"currency"`
	MonthlyPoints   int64            `json:"monthly_points"`
	BillingCycle    string           `json:"billing_cycle"`
	TrialDays       int              `json:"trial_days"`
	Active          bool             `json:"active"`
	Entitlements    []EntitlementDTO `json:"entitlements,omitempty"`
}

type EntitlementDTO struct {
	Key      string         `json:"key"`
	Enabled  bool           `json:"enabled"`
	Value    string         `json:"value,omitempty"`
	Limit    *int64         `json:"limit,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type CheckoutDTO struct {
	OrderID         uint   `json:"order_id"`
	ExternalOrderID string `json:"external_order_id"`
	Status          string `json:"status"`
	AmountCents     int64  `json:"amount_cents"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	CheckoutURL     string `json:"checkout_url,omitempty"`
	Reused          bool   `json:"reused"`
}

type PointFlowDTO struct {
	ID           uint      `json:"id"`
	FlowType     string    `json:"flow_type"`
	Points       int64     `json:"points"`
	BalanceAfter int64     `json:"balance_after"`
	OrderID      *uint     `json:"order_id,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type PointBalanceDTO struct {
	UserID    uint      `json:"user_id"`
	Balance   int64     `json:"balance"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PointMutationDTO struct {
	Flow    PointFlowDTO `json:"flow"`
	Balance int64        `json:"balance"`
	Applied bool         `json:"applied"`
}

type WebhookResultDTO struct {
	Status          string `json:"status"`
	EventType       string `json:"event_type,omitempty"`
	EventID         string `json:"event_id,omitempty"`
	ExternalOrderID string `json:"external_order_id,omitempty"`
	OrderStatus     string `json:"order_status,omitempty"`
	Detail          string `json:"detail,omitempty"`
}
