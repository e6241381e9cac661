package usecases

import (
	"context"

	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

// webhookAuditor writes one audit row per inbound notification. Rows are
// written outside the event transaction so rejections and failures are
// kept even when the ledger work rolled back.
type webhookAuditor struct {
	repo   billing.AuditLogRepository
	logger logger.Interface
}

func (a *webhookAuditor) record(ctx context.Context, entry *billing.AuditEntry) error {
	if err := a.repo.Append(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Errorw("failed to write webhook audit log",
			"provider", entry.Provider,
			"event_id", entry.ExternalEventID,
			"external_order_id", entry.ExternalOrderID,
			"outcome", entry.Outcome,
			"error", err,
		)
		return err
	}
	return nil
}

// recordRejection keeps the rejection as the caller-visible error even when
// the audit write fails; the failure is logged by record.
func (a *webhookAuditor) recordRejection(ctx context.Context, entry *billing.AuditEntry, rejection error) error {
	_ = a.record(ctx, entry)
	return rejection
}

func auditOutcomeFor(result *ProcessResult) vo.AuditOutcome {
	if result == nil || result.Outcome == "" {
		return vo.AuditOutcomeProcessed
	}
	return result.Outcome
}
