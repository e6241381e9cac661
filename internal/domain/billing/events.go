package billing

import "time"

const (
	EventOrderPaid             = "order.paid"
	EventOrderRefunded         = "order.refunded"
	EventOrderCanceled         = "order.canceled"
	EventOrderFailed           = "order.failed"
	EventSubscriptionActivated = "subscription.activated"
	EventSubscriptionExpired   = "subscription.expired"
)

// Event is a fact recorded alongside a ledger change and relayed to other
// services through the outbox.
type Event struct {
	Type       string
	Key        string
	Payload    map[string]any
	OccurredAt time.Time
}

// OutboxMessage is an Event waiting in the outbox.
type OutboxMessage struct {
	ID          uint
	Event       Event
	Attempts    int
	LastError   string
	PublishedAt *time.Time
}
