package usecases

import (
	"context"
	"net/http"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const wechatSignatureHeader = "Wechatpay-Signature"

type ProviderNotifyCommand struct {
	Header http.Header
	Body   []byte
}

// ProviderNotifyUseCase handles a provider's own signed notification format
// (WeChat Pay v3) and feeds it through the same processor as the webhook.
type ProviderNotifyUseCase struct {
	parser    paymentgateway.NotificationParser
	processor *PaymentEventProcessor
	auditor   *webhookAuditor
	logger    logger.Interface
}

func NewProviderNotifyUseCase(
	parser paymentgateway.NotificationParser,
	processor *PaymentEventProcessor,
	auditRepo billing.AuditLogRepository,
	logger logger.Interface,
) *ProviderNotifyUseCase {
	return &ProviderNotifyUseCase{
		parser:    parser,
		processor: processor,
		auditor:   &webhookAuditor{repo: auditRepo, logger: logger},
		logger:    logger,
	}
}

func (uc *ProviderNotifyUseCase) Execute(ctx context.Context, cmd ProviderNotifyCommand) (*ProcessResult, error) {
	entry := &billing.AuditEntry{
		Provider:   uc.parser.Provider(),
		Signature:  cmd.Header.Get(wechatSignatureHeader),
		RawPayload: cmd.Body,
	}

	ev, err := uc.parser.ParseNotification(cmd.Header, cmd.Body)
	if err != nil {
		appErr := apperrors.GetAppError(err)
		if appErr != nil && appErr.Type == apperrors.ErrorTypeForbidden {
			uc.logger.Warnw("provider notification signature rejected", "provider", entry.Provider, "error", err)
			entry.Outcome = vo.AuditOutcomeRejectedSignature
			entry.Detail = err.Error()
			return nil, uc.auditor.recordRejection(ctx, entry, &billing.SignatureError{Reason: err.Error()})
		}
		entry.SignatureValid = true
		entry.Outcome = vo.AuditOutcomeRejectedPayload
		entry.Detail = err.Error()
		return nil, uc.auditor.recordRejection(ctx, entry, billing.NewWebhookValidationError("undecodable notification", err))
	}

	entry.SignatureValid = true
	entry.EventType = ev.EventType
	entry.ExternalEventID = ev.EventID
	entry.ExternalOrderID = ev.ExternalOrderID
	return runAndAudit(ctx, uc.processor, uc.auditor, uc.logger, ev, entry)
}
