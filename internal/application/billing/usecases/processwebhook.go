package usecases

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orris-inc/docpilot/internal/application/billing/paymentgateway"
	"github.com/orris-inc/docpilot/internal/domain/billing"
	vo "github.com/orris-inc/docpilot/internal/domain/billing/valueobjects"
	"github.com/orris-inc/docpilot/internal/shared/logger"
)

const signaturePrefix = "sha256="

// ProcessWebhookCommand is the raw inbound call. Body must be the exact
// bytes that were signed.
type ProcessWebhookCommand struct {
	Body      []byte
	Signature string
}

type webhookPayload struct {
	EventType string      `json:"event_type" validate:"required,max=64"`
	EventID   string      `json:"event_id" validate:"max=128"`
	ID        string      `json:"id" validate:"max=128"`
	Provider  string      `json:"provider" validate:"max=32"`
	Data      webhookData `json:"data"`
}

type webhookData struct {
	ExternalOrderID string     `json:"external_order_id" validate:"max=64"`
	UserID          *uint      `json:"user_id"`
	PlanCode        string     `json:"plan_code" validate:"max=64"`
	AmountCents     *int64     `json:"amount_cents" validate:"omitempty,min=0"`
	Currency        string     `json:"currency" validate:"omitempty,len=3"`
	PaidAt          *time.Time `json:"paid_at"`
}

func (p *webhookPayload) eventID() string {
	if p.EventID != "" {
		return p.EventID
	}
	return p.ID
}

func (p *webhookPayload) toEvent() *paymentgateway.PaymentEvent {
	provider := vo.ProviderInternal
	if p.Provider != "" {
		provider = vo.ParseProvider(p.Provider)
	}
	return &paymentgateway.PaymentEvent{
		Provider:        provider,
		EventType:       p.EventType,
		EventID:         p.eventID(),
		ExternalOrderID: p.Data.ExternalOrderID,
		UserID:          p.Data.UserID,
		PlanCode:        p.Data.PlanCode,
		AmountCents:     p.Data.AmountCents,
		Currency:        p.Data.Currency,
		PaidAt:          p.Data.PaidAt,
	}
}

// ProcessWebhookUseCase handles the HMAC-signed internal webhook.
type ProcessWebhookUseCase struct {
	secret    []byte
	processor *PaymentEventProcessor
	auditor   *webhookAuditor
	validate  *validator.Validate
	logger    logger.Interface
}

func NewProcessWebhookUseCase(
	secret string,
	processor *PaymentEventProcessor,
	auditRepo billing.AuditLogRepository,
	logger logger.Interface,
) *ProcessWebhookUseCase {
	return &ProcessWebhookUseCase{
		secret:    []byte(secret),
		processor: processor,
		auditor:   &webhookAuditor{repo: auditRepo, logger: logger},
		validate:  validator.New(),
		logger:    logger,
	}
}

// VerifySignature checks a hex HMAC-SHA256 of body, optionally prefixed
// "sha256=", in constant time. An empty secret rejects everything.
func VerifySignature(secret, body []byte, header string) error {
	if len(secret) == 0 {
		return &billing.SignatureError{Reason: "webhook secret is not configured"}
	}
	header = strings.TrimSpace(header)
	if header == "" {
		return &billing.SignatureError{Reason: "missing signature header"}
	}
	if len(header) > len(signaturePrefix) && strings.EqualFold(header[:len(signaturePrefix)], signaturePrefix) {
		header = header[len(signaturePrefix):]
	}
	got, err := hex.DecodeString(header)
	if err != nil {
		return &billing.SignatureError{Reason: "signature is not hex"}
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return &billing.SignatureError{Reason: "signature mismatch"}
	}
	return nil
}

// SignPayload returns the hex signature VerifySignature accepts.
func SignPayload(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (uc *ProcessWebhookUseCase) Execute(ctx context.Context, cmd ProcessWebhookCommand) (*ProcessResult, error) {
	entry := &billing.AuditEntry{
		Provider:   vo.ProviderInternal,
		Signature:  cmd.Signature,
		RawPayload: cmd.Body,
	}

	if err := VerifySignature(uc.secret, cmd.Body, cmd.Signature); err != nil {
		uc.logger.Warnw("webhook signature rejected", "error", err)
		entry.Outcome = vo.AuditOutcomeRejectedSignature
		entry.Detail = err.Error()
		return nil, uc.auditor.recordRejection(ctx, entry, err)
	}
	entry.SignatureValid = true

	var payload webhookPayload
	if err := json.Unmarshal(cmd.Body, &payload); err != nil {
		entry.Outcome = vo.AuditOutcomeRejectedPayload
		entry.Detail = "invalid JSON"
		return nil, uc.auditor.recordRejection(ctx, entry, billing.NewWebhookValidationError("invalid JSON", err))
	}
	if payload.Provider != "" {
		entry.Provider = vo.ParseProvider(payload.Provider)
	}
	entry.EventType = payload.EventType
	entry.ExternalEventID = payload.eventID()
	entry.ExternalOrderID = payload.Data.ExternalOrderID

	if err := uc.validate.Struct(&payload); err != nil {
		entry.Outcome = vo.AuditOutcomeRejectedPayload
		entry.Detail = err.Error()
		return nil, uc.auditor.recordRejection(ctx, entry, billing.NewWebhookValidationError("invalid payload", err))
	}

	return runAndAudit(ctx, uc.processor, uc.auditor, uc.logger, payload.toEvent(), entry)
}

// runAndAudit processes ev and writes the audit row for whatever happened.
func runAndAudit(
	ctx context.Context,
	processor *PaymentEventProcessor,
	auditor *webhookAuditor,
	log logger.Interface,
	ev *paymentgateway.PaymentEvent,
	entry *billing.AuditEntry,
) (*ProcessResult, error) {
	result, err := processor.Process(ctx, ev)
	if err != nil {
		var invalid *billing.WebhookValidationError
		if errors.As(err, &invalid) {
			log.Warnw("payment event rejected",
				"event_type", ev.EventType,
				"event_id", ev.EventID,
				"external_order_id", ev.ExternalOrderID,
				"reason", invalid.Reason,
			)
			entry.Outcome = vo.AuditOutcomeRejected
			entry.Detail = err.Error()
			return nil, auditor.recordRejection(ctx, entry, err)
		}
		log.Errorw("payment event failed",
			"event_type", ev.EventType,
			"event_id", ev.EventID,
			"external_order_id", ev.ExternalOrderID,
			"error", err,
		)
		entry.Outcome = vo.AuditOutcomeError
		entry.Detail = err.Error()
		return nil, auditor.recordRejection(ctx, entry, err)
	}

	entry.Outcome = auditOutcomeFor(result)
	entry.Detail = result.Detail
	if err := auditor.record(ctx, entry); err != nil {
		return nil, err
	}
	return result, nil
}
