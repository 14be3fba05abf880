// Package errors provides standardized error handling for the quality pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Startup errors. These stop the process.
const (
	ErrCodeConfigInvalid   ErrorCode = "CONFIG_INVALID"
	ErrCodeUnknownProvider ErrorCode = "UNKNOWN_PROVIDER"
)

// Per-record errors. These never stop the stream.
const (
	ErrCodeContentFetchFailed ErrorCode = "CONTENT_FETCH_FAILED"
	ErrCodeLLMTimeout         ErrorCode = "LLM_TIMEOUT"
	ErrCodeLLMRequestFailed   ErrorCode = "LLM_REQUEST_FAILED"
	ErrCodeLLMResponseInvalid ErrorCode = "LLM_RESPONSE_INVALID"
	ErrCodeEventDecodeFailed  ErrorCode = "EVENT_DECODE_FAILED"
	ErrCodePublishFailed      ErrorCode = "PUBLISH_FAILED"
	ErrCodeNotificationFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns the error with an extra metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// ==========================
// 2. Error Constructors
// ==========================

// NewConfigInvalidError creates a non-retryable configuration error.
func NewConfigInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigInvalid,
		Message:   "Invalid configuration",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnknownProviderError is raised when the validator factory has no
// implementation registered under the requested name.
func NewUnknownProviderError(provider string, available []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnknownProvider,
		Message:   fmt.Sprintf("Unknown provider: %s", provider),
		Details:   fmt.Sprintf("provider: %s, available: %s", provider, strings.Join(available, ", ")),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewContentFetchFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeContentFetchFailed,
		Message:   "Failed to fetch document content",
		Details:   fmt.Sprintf("key: %s, error: %s", key, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewLLMTimeoutError(provider string, timeout time.Duration) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMTimeout,
		Message:   "request timed out",
		Details:   fmt.Sprintf("provider: %s, timeout: %s", provider, timeout),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewLLMRequestFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMRequestFailed,
		Message:   fmt.Sprintf("%s request failed", provider),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewLLMResponseInvalidError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLLMResponseInvalid,
		Message:   fmt.Sprintf("%s returned an unusable response", provider),
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewEventDecodeFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEventDecodeFailed,
		Message:   "Change event could not be decoded",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewPublishFailedError(topic string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePublishFailed,
		Message:   "Failed to publish enriched event",
		Details:   fmt.Sprintf("topic: %s, error: %s", topic, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

func NewNotificationFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected failure, including recovered panics.
func NewInternalError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Helpers
// ==========================

// AsStandardError unwraps err to a *StandardError when one is in the chain.
func AsStandardError(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Code == code
}

// IsRetryable reports whether err is a transient failure.
func IsRetryable(err error) bool {
	stdErr, ok := AsStandardError(err)
	return ok && stdErr.Retryable
}

// GetRetryCount returns the number of publish-side retries for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodePublishFailed:
		return 3
	case ErrCodeNotificationFailed:
		return 1
	default:
		return 0
	}
}
