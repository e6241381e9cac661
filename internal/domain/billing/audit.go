package billing

import (
	"time"

	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
)

// AuditEntry records one inbound payment notification, accepted or not.
type AuditEntry struct {
	ID              uint
	Provider        vo.Provider
	EventType       string
	ExternalEventID string
	ExternalOrderID string
	Signature       string
	SignatureValid  bool
	RawPayload      []byte
	Outcome         vo.AuditOutcome
	Detail          string
	CreatedAt       time.Time
}
