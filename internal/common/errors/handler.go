// internal/common/errors/handler.go
package errors

import (
	"fmt"
	"time"
)

// ErrorHandler normalizes and reports per-record failures. It never decides to
// stop the stream; callers drop the record after reporting.
type ErrorHandler struct {
	logger  Logger
	onError func(code ErrorCode)
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// OnError registers a hook called with the normalized code of every handled
// error. Used to feed error counters.
func (h *ErrorHandler) OnError(fn func(code ErrorCode)) *ErrorHandler {
	h.onError = fn
	return h
}

// HandleRecordError logs a failure for the record at the given position and
// returns the normalized error.
func (h *ErrorHandler) HandleRecordError(topic string, partition int, offset int64, err error) *StandardError {
	stdErr := h.normalizeError(err)

	h.logger.Error("record processing failed", map[string]interface{}{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"errorCode": stdErr.Code,
		"message":   stdErr.Message,
		"details":   stdErr.Details,
		"retryable": stdErr.Retryable,
	})

	if h.onError != nil {
		h.onError(stdErr.Code)
	}
	return stdErr
}

// RecoverPanic converts a recovered panic value into an internal error.
func RecoverPanic(r interface{}) *StandardError {
	return NewInternalError(fmt.Sprintf("panic: %v", r))
}

// normalizeError ensures we always have a StandardError
func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}
