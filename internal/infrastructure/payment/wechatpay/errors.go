// Package wechatpay implements the WeChat Pay API v3 request signing,
// notification verification and resource decryption, plus a Native
// checkout gateway built on them.
package wechatpay

import (
	"fmt"

	apperrors "github.com/orris-inc/docpilot/internal/shared/errors"
)

// CryptoError reports bad key material or a signature/decryption failure.
// It is treated as a validation failure at the HTTP boundary.
type CryptoError struct {
	Op     string
	Reason string
	Err    error
}

func (e *CryptoError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wechatpay %s: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("wechatpay %s: %s", e.Op, e.Reason)
}

func (e *CryptoError) Unwrap() error { return e.Err }

func (e *CryptoError) AppError() *apperrors.AppError {
	if e.Op == opVerify {
		return apperrors.NewForbiddenError("invalid wechatpay signature", e.Reason)
	}
	return apperrors.NewValidationError("invalid wechatpay notification", e.Reason)
}

const (
	opLoadKey = "load key"
	opSign    = "sign"
	opVerify  = "verify"
	opDecrypt = "decrypt"
)

func cryptoErr(op, reason string, err error) *CryptoError {
	return &CryptoError{Op: op, Reason: reason, Err: err}
}
