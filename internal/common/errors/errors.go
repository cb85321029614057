// Package errors provides the standardized error catalogue used by the bot and its workers.
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

const (
	ErrCodeBrowserStartFailed ErrorCode = "BROWSER_START_FAILED"
	ErrCodeAutomationFailed   ErrorCode = "AUTOMATION_FAILED"
	ErrCodeDownloadMissing    ErrorCode = "DOWNLOAD_MISSING"

	ErrCodeDeliveryFailed   ErrorCode = "DELIVERY_FAILED"
	ErrCodeChannelAPIFailed ErrorCode = "CHANNEL_API_FAILED"

	ErrCodeSessionStoreFailed ErrorCode = "SESSION_STORE_FAILED"
	ErrCodeInvalidDetails     ErrorCode = "INVALID_DETAILS"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Cause     error                  `json:"-"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.Cause
}

// ==========================
// 2. Error Constructors
// ==========================

// NewBrowserStartFailedError creates a retryable error for a browser that could not be launched.
func NewBrowserStartFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeBrowserStartFailed,
		Message:   "Browser engine failed to start",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewAutomationFailedError wraps a failure of one browser-driving step.
func NewAutomationFailedError(step string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeAutomationFailed,
		Message:   "Form automation failed",
		Details:   fmt.Sprintf("step: %s, error: %s", step, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"step": step},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewDownloadMissingError reports that the form produced no file in the download folder.
func NewDownloadMissingError(folder string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDownloadMissing,
		Message:   "No document was downloaded",
		Details:   fmt.Sprintf("folder: %s", folder),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDeliveryFailedError wraps a failure to hand a document to a channel.
func NewDeliveryFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDeliveryFailed,
		Message:   "Document delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Metadata:  map[string]interface{}{"channel": channel},
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewChannelAPIFailedError reports a non-success answer from a chat platform API.
func NewChannelAPIFailedError(channel string, status int, body string) *StandardError {
	return &StandardError{
		Code:      ErrCodeChannelAPIFailed,
		Message:   "Channel API returned an error",
		Details:   fmt.Sprintf("channel: %s, status: %d, body: %s", channel, status, body),
		Retryable: status >= 500,
		Metadata:  map[string]interface{}{"channel": channel, "status": status},
		Timestamp: time.Now().UTC(),
	}
}

// NewSessionStoreFailedError wraps a session store read or write failure.
func NewSessionStoreFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSessionStoreFailed,
		Message:   "Session store operation failed",
		Details:   fmt.Sprintf("op: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewInvalidDetailsError reports a detail set that does not satisfy the field schema.
func NewInvalidDetailsError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidDetails,
		Message:   "Collected details are incomplete",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps anything unexpected, including recovered panics.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the code of err, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	return Normalize(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "BROWSER") || strings.Contains(codeStr, "AUTOMATION") || strings.Contains(codeStr, "DOWNLOAD"):
		return "AUTOMATION"
	case strings.Contains(codeStr, "DELIVERY") || strings.Contains(codeStr, "CHANNEL"):
		return "DELIVERY"
	case strings.Contains(codeStr, "SESSION"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
