package paymentgateway

import (
	"net/http"
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// PaymentEvent is a provider notification normalized to the webhook event
// vocabulary. Optional fields are nil when the provider did not send them,
// and only non-nil fields are cross-checked against the stored order.
type PaymentEvent struct {
	Provider        vo.Provider
	EventType       string
	EventID         string
	ExternalOrderID string
	UserID          *uint
	PlanCode        string
	AmountCents     *int64
	Currency        string
	PaidAt          *time.Time
	// Details is merged into the order's provider_payload.
	Details map[string]any
}

// NotificationParser authenticates and decodes a provider's notify call.
// Signature failures must carry a forbidden AppError so callers can tell
// them apart from malformed payloads.
type NotificationParser interface {
	Provider() vo.Provider
	ParseNotification(header http.Header, body []byte) (*PaymentEvent, error)
}
