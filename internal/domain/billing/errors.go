package billing

import (
	"fmt"

	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
)

// NotFoundError is returned when a plan, order, subscription or account is missing.
type NotFoundError struct {
	Entity string
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.Key)
}

func (e *NotFoundError) AppError() *apperrors.AppError {
	return apperrors.NewNotFoundError(e.Entity+" not found", e.Key)
}

func NewNotFoundError(entity, key string) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

// StateError reports an illegal transition. From names the status the entity
// was actually in.
type StateError struct {
	Entity string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot move %s from %s to %s", e.Entity, e.From, e.To)
}

func (e *StateError) AppError() *apperrors.AppError {
	return apperrors.NewConflictError(e.Error())
}

// InsufficientPointsError is raised when a consume would drive a balance negative.
type InsufficientPointsError struct {
	UserID    uint
	Balance   int64
	Requested int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points for user %d: balance %d, requested %d", e.UserID, e.Balance, e.Requested)
}

func (e *InsufficientPointsError) AppError() *apperrors.AppError {
	return apperrors.NewConflictError("insufficient points",
		fmt.Sprintf("balance %d, requested %d", e.Balance, e.Requested))
}

// LedgerConflictError means every optimistic write attempt lost its race.
type LedgerConflictError struct {
	UserID   uint
	Attempts int
}

func (e *LedgerConflictError) Error() string {
	return fmt.Sprintf("point account %d changed concurrently, gave up after %d attempts", e.UserID, e.Attempts)
}

func (e *LedgerConflictError) AppError() *apperrors.AppError {
	return apperrors.NewConflictError("point balance changed concurrently, retry later")
}

// WebhookValidationError marks a structurally invalid or inconsistent payment
// notification. It never mutates ledger state and maps to 400.
type WebhookValidationError struct {
	Reason string
	Err    error
}

func NewWebhookValidationError(reason string, err error) *WebhookValidationError {
	return &WebhookValidationError{Reason: reason, Err: err}
}

func (e *WebhookValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid webhook: %s: %v", e.Reason, e.Err)
	}
	return "invalid webhook: " + e.Reason
}

func (e *WebhookValidationError) Unwrap() error { return e.Err }

func (e *WebhookValidationError) AppError() *apperrors.AppError {
	return apperrors.NewValidationError("invalid webhook", e.Reason)
}

// SignatureError is returned for a missing, malformed or mismatched
// notification signature. It maps to 403.
type SignatureError struct {
	Reason string
}

func (e *SignatureError) Error() string {
	return "signature verification failed: " + e.Reason
}

func (e *SignatureError) AppError() *apperrors.AppError {
	return apperrors.NewForbiddenError("invalid signature")
}
