// Package errors provides standardized error handling for the dispatch engine.
package errors

import (
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingRecipient    ErrorCode = "MISSING_RECIPIENT"
	ErrCodeInvalidAddress      ErrorCode = "INVALID_ADDRESS"
	ErrCodeMissingContent      ErrorCode = "MISSING_CONTENT"
	ErrCodeTemplateNotFound    ErrorCode = "TEMPLATE_NOT_FOUND"
	ErrCodeTemplateSyntaxError ErrorCode = "TEMPLATE_SYNTAX_ERROR"
	ErrCodeRateLimitExceeded   ErrorCode = "RATE_LIMIT_EXCEEDED"
	ErrCodeMissingEmail        ErrorCode = "MISSING_EMAIL"
	ErrCodeDeliveryError       ErrorCode = "DELIVERY_ERROR"
	ErrCodeUnknownFailure      ErrorCode = "UNKNOWN_FAILURE"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewMissingRecipientError creates a non-retryable validation error for an
// absent "to" address.
func NewMissingRecipientError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingRecipient,
		Message:   "Recipient email address is required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidAddressError creates a non-retryable validation error for an
// address that does not match the expected local@domain.tld shape.
func NewInvalidAddressError(address string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidAddress,
		Message:   "Invalid email address format",
		Details:   fmt.Sprintf("address: %s", address),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingContentError creates a non-retryable validation error for a
// request carrying neither literal content nor a template reference.
func NewMissingContentError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingContent,
		Message:   "Either subject/body or a template must be provided",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateNotFoundError creates a non-retryable template lookup error.
func NewTemplateNotFoundError(templateID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateNotFound,
		Message:   "Template not found in registry",
		Details:   fmt.Sprintf("templateId: %s", templateID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTemplateSyntaxError creates a non-retryable template parse error carrying
// the parser diagnostic.
func NewTemplateSyntaxError(diagnostic string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTemplateSyntaxError,
		Message:   "Template is structurally malformed",
		Details:   diagnostic,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRateLimitExceededError creates a retryable admission error carrying the
// configured ceiling.
func NewRateLimitExceededError(ceiling int) *StandardError {
	return &StandardError{
		Code:      ErrCodeRateLimitExceeded,
		Message:   fmt.Sprintf("Rate limit of %d messages per window exceeded", ceiling),
		Retryable: true,
		Metadata:  map[string]interface{}{"ceiling": ceiling},
		Timestamp: time.Now().UTC(),
	}
}

// NewMissingEmailError creates a non-retryable error for a preference update
// without an address.
func NewMissingEmailError() *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingEmail,
		Message:   "Email address is required",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryError wraps a transport failure from the delivery channel.
// Delivery errors are retryable: the message was valid and policy-admitted.
func NewDeliveryError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryError,
		Message:   "Message delivery failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownFailureError wraps any unexpected internal fault.
func NewUnknownFailureError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownFailure,
		Message:   "Unexpected internal error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// Normalize ensures any error is represented as a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewUnknownFailureError(err)
}
