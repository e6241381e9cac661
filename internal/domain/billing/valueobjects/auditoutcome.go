package valueobjects

// AuditOutcome records what happened to an inbound payment notification.
type AuditOutcome string

const (
	AuditOutcomeProcessed         AuditOutcome = "processed"
	AuditOutcomeDuplicate         AuditOutcome = "duplicate"
	AuditOutcomeIgnored           AuditOutcome = "ignored"
	AuditOutcomeRejectedSignature AuditOutcome = "rejected_signature"
	AuditOutcomeRejectedPayload   AuditOutcome = "rejected_payload"
	AuditOutcomeRejected          AuditOutcome = "rejected"
	AuditOutcomeError             AuditOutcome = "error"
)

func (o AuditOutcome) String() string {
	return string(o)
}
