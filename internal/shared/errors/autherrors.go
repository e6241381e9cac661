package errors

import (
	stderrors "errors"
	"net/http"
)

// Bearer authentication error types
const (
	ErrorTypeTokenMissing     ErrorType = "token_missing"
	ErrorTypeTokenMalformed   ErrorType = "token_malformed"
	ErrorTypeTokenExpired     ErrorType = "token_expired"
	ErrorTypeTokenInvalid     ErrorType = "token_invalid"
	ErrorTypeTokenTypeInvalid ErrorType = "token_type_invalid"
)

// AuthError is an authentication failure at the API boundary.
type AuthError struct {
	*AppError
	// ShouldLog is false for failures every client hits sooner or later,
	// such as an expired token.
	ShouldLog bool
	// SecurityEvent marks failures that may indicate a forged token.
	SecurityEvent bool
}

func (e *AuthError) Error() string {
	return e.AppError.Error()
}

func (e *AuthError) Unwrap() error {
	return e.AppError
}

func newAuthError(t ErrorType, message, details string, shouldLog, securityEvent bool) *AuthError {
	return &AuthError{
		AppError: &AppError{
			Type:    t,
			Message: message,
			Code:    http.StatusUnauthorized,
			Details: details,
		},
		ShouldLog:     shouldLog,
		SecurityEvent: securityEvent,
	}
}

func NewTokenMissingError() *AuthError {
	return newAuthError(ErrorTypeTokenMissing, "missing authorization token", "", false, false)
}

func NewTokenMalformedError() *AuthError {
	return newAuthError(ErrorTypeTokenMalformed, "invalid authorization header format",
		"expected \"Bearer <token>\"", false, false)
}

// NewTokenExpiredError is returned for tokens past their exp claim.
func NewTokenExpiredError() *AuthError {
	return newAuthError(ErrorTypeTokenExpired, "token has expired", "request a new token from the identity service", false, false)
}

// NewTokenInvalidError covers bad signatures, wrong issuers and unknown roles.
func NewTokenInvalidError() *AuthError {
	return newAuthError(ErrorTypeTokenInvalid, "invalid token", "", true, true)
}

func NewTokenTypeInvalidError(tokenType string) *AuthError {
	return newAuthError(ErrorTypeTokenTypeInvalid, "token type not accepted", tokenType, true, true)
}

// GetAuthError extracts an AuthError from the error chain.
func GetAuthError(err error) *AuthError {
	var authErr *AuthError
	if stderrors.As(err, &authErr) {
		return authErr
	}
	return nil
}

// ShouldLogAuthError reports whether an auth failure is worth a log line.
// Errors that are not AuthErrors are always logged.
func ShouldLogAuthError(err error) bool {
	if authErr := GetAuthError(err); authErr != nil {
		return authErr.ShouldLog
	}
	return true
}

func IsSecurityEvent(err error) bool {
	if authErr := GetAuthError(err); authErr != nil {
		return authErr.SecurityEvent
	}
	return false
}
