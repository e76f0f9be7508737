package domain

import (
	"errors"
	"fmt"
)

// ============================================================================
// Domain Error Types
// ============================================================================

// DomainError represents a domain-specific error with a code and message
type DomainError struct {
	Code    string
	Message string
	Cause   error
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code, so wrapped errors
// compare equal to the sentinels below with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ============================================================================
// Common Domain Errors
// ============================================================================

var (
	// Resolution Errors
	ErrResolutionRejected = &DomainError{
		Code:    "RESOLUTION_REJECTED",
		Message: "credential was rejected by the identity service",
	}
	ErrResolutionFailed = &DomainError{
		Code:    "RESOLUTION_FAILED",
		Message: "identity resolution failed",
	}

	// Auth Errors
	ErrAuthRejected = &DomainError{
		Code:    "AUTH_REJECTED",
		Message: "authentication rejected",
	}
	ErrRegistrationFailed = &DomainError{
		Code:    "REGISTRATION_FAILED",
		Message: "registration failed",
	}
	ErrNotAuthenticated = &DomainError{
		Code:    "NOT_AUTHENTICATED",
		Message: "not authenticated",
	}

	// OAuth Errors
	ErrProviderUnknown = &DomainError{
		Code:    "PROVIDER_UNKNOWN",
		Message: "unknown identity provider",
	}
	ErrProviderNotImplemented = &DomainError{
		Code:    "PROVIDER_NOT_IMPLEMENTED",
		Message: "identity provider not implemented",
	}
	ErrCallbackTokenMissing = &DomainError{
		Code:    "CALLBACK_TOKEN_MISSING",
		Message: "no token found in callback query",
	}

	// Payment Errors
	ErrPaymentCompletionFailed = &DomainError{
		Code:    "PAYMENT_COMPLETION_FAILED",
		Message: "failed to mark subscription",
	}
	ErrCheckoutFailed = &DomainError{
		Code:    "CHECKOUT_FAILED",
		Message: "failed to create checkout session",
	}

	// Validation Errors
	ErrValidationFailed = &DomainError{
		Code:    "VALIDATION_FAILED",
		Message: "validation failed",
	}
	ErrMalformedResponse = &DomainError{
		Code:    "MALFORMED_RESPONSE",
		Message: "remote service returned a malformed response",
	}

	// Infrastructure Errors
	ErrCredentialStore = &DomainError{
		Code:    "CREDENTIAL_STORE_FAILED",
		Message: "credential storage operation failed",
	}
	ErrRemoteUnavailable = &DomainError{
		Code:    "REMOTE_UNAVAILABLE",
		Message: "remote service unavailable",
	}
)

// ============================================================================
// Error Wrapping Helpers
// ============================================================================

// WrapResolutionRejected wraps an error as a definitive credential rejection
func WrapResolutionRejected(cause error) error {
	return &DomainError{
		Code:    ErrResolutionRejected.Code,
		Message: ErrResolutionRejected.Message,
		Cause:   cause,
	}
}

// WrapResolutionFailed wraps an error as a resolution failure of unknown cause
func WrapResolutionFailed(cause error) error {
	return &DomainError{
		Code:    ErrResolutionFailed.Code,
		Message: ErrResolutionFailed.Message,
		Cause:   cause,
	}
}

// WrapProviderNotImplemented builds the blocking notice for a catalogued
// provider that has no initiation endpoint yet
func WrapProviderNotImplemented(provider string) error {
	return &DomainError{
		Code:    ErrProviderNotImplemented.Code,
		Message: fmt.Sprintf("%s login not implemented yet", provider),
	}
}

// WrapProviderUnknown wraps an unknown provider name
func WrapProviderUnknown(provider string) error {
	return &DomainError{
		Code:    ErrProviderUnknown.Code,
		Message: fmt.Sprintf("unknown identity provider: %s", provider),
	}
}

// WrapCredentialStore wraps a storage backend failure
func WrapCredentialStore(operation string, cause error) error {
	return &DomainError{
		Code:    ErrCredentialStore.Code,
		Message: fmt.Sprintf("credential storage operation failed: %s", operation),
		Cause:   cause,
	}
}

// WrapValidationError wraps a validation failure for the given field
func WrapValidationError(field string, cause error) error {
	msg := fmt.Sprintf("validation failed for %s", field)
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &DomainError{
		Code:    ErrValidationFailed.Code,
		Message: msg,
		Cause:   cause,
	}
}

// WrapMalformedResponse wraps a decode or validation failure of a remote payload
func WrapMalformedResponse(operation string, cause error) error {
	return &DomainError{
		Code:    ErrMalformedResponse.Code,
		Message: fmt.Sprintf("malformed response from %s", operation),
		Cause:   cause,
	}
}

// PublicMessage returns the message of a domain error without its code.
// Non-domain errors get a generic message so internals never leak to pages.
func PublicMessage(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return "An error occurred"
}

// ============================================================================
// Error Checking Helpers
// ============================================================================

// IsRejected reports whether the remote service definitively refused the
// caller's credential or login, anywhere in the chain
func IsRejected(err error) bool {
	return errors.Is(err, ErrResolutionRejected) || errors.Is(err, ErrAuthRejected)
}

// IsProviderError checks if an error is an OAuth provider lookup error
func IsProviderError(err error) bool {
	return errors.Is(err, ErrProviderUnknown) || errors.Is(err, ErrProviderNotImplemented)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidationFailed) || errors.Is(err, ErrMalformedResponse)
}

// IsInfrastructureError checks if an error is an infrastructure error.
// A storage or transport failure wrapped by an operation error still counts.
func IsInfrastructureError(err error) bool {
	return errors.Is(err, ErrCredentialStore) || errors.Is(err, ErrRemoteUnavailable)
}
