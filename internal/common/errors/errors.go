// Package errors provides standardized error handling for the inventory store and its collaborators.
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
	// (a) remote write failures: surfaced to the user, cache untouched, no retry
	ErrCodeRemoteWriteFailed ErrorCode = "REMOTE_WRITE_FAILED"
	// (b) remote read failures at load: collection defaults to empty, log only
	ErrCodeRemoteReadFailed ErrorCode = "REMOTE_READ_FAILED"
	// (c) realtime subscription failures: log only, no live updates
	ErrCodeSubscriptionFailed ErrorCode = "SUBSCRIPTION_FAILED"
	ErrCodeInvalidEvent       ErrorCode = "INVALID_EVENT"
	// (d) image delete failures: log only, never block the owning row delete
	ErrCodeImageDeleteFailed ErrorCode = "IMAGE_DELETE_FAILED"
	// (e) image upload failures: fatal to that submit
	ErrCodeImageUploadFailed ErrorCode = "IMAGE_UPLOAD_FAILED"
	ErrCodeImageInvalid      ErrorCode = "IMAGE_INVALID"

	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeAuthentication    ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeNotAuthenticated  ErrorCode = "NOT_AUTHENTICATED"
	ErrCodeDatabaseConnect   ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeLocalStateFailed  ErrorCode = "LOCAL_STATE_FAILED"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error. Message is what a user sees;
// Details and Cause are for logs.
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

// Is matches another StandardError by code, so sentinel values work with errors.Is.
func (e *StandardError) Is(target error) bool {
	t, ok := target.(*StandardError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithMetadata returns e with key set in its metadata.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithMessage returns a copy of e with its user-facing message replaced.
func (e *StandardError) WithMessage(message string) *StandardError {
	cp := *e
	cp.Message = message
	return &cp
}

// ErrNotAuthenticated is returned by guarded operations when no session is active.
var ErrNotAuthenticated = &StandardError{
	Code:    ErrCodeNotAuthenticated,
	Message: "Not authenticated",
}

// ErrNotFound matches any NOT_FOUND error.
var ErrNotFound = &StandardError{
	Code:    ErrCodeNotFound,
	Message: "Not found",
}

// ==========================
// 2. Error Constructors
// ==========================

// NewRemoteWriteFailedError wraps a failed insert/update/delete. message is the
// user-facing text for that operation.
func NewRemoteWriteFailedError(message, operation string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteWriteFailed,
		Message:   message,
		Details:   fmt.Sprintf("operation: %s, error: %s", operation, errString(err)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// NewRemoteReadFailedError wraps a failed bulk select.
func NewRemoteReadFailedError(table string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRemoteReadFailed,
		Message:   "Remote read failed",
		Details:   fmt.Sprintf("table: %s, error: %s", table, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewSubscriptionFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionFailed,
		Message:   "Realtime subscription failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewInvalidEventError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidEvent,
		Message:   "Invalid change event",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewImageUploadFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageUploadFailed,
		Message:   "Error al subir la imagen: " + errString(err),
		Details:   errString(err),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewImageInvalidError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageInvalid,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewImageDeleteFailedError(url string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeImageDeleteFailed,
		Message:   "Image delete failed",
		Details:   fmt.Sprintf("url: %s, error: %s", url, errString(err)),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewNotFoundError(kind, id string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", kind),
		Details:   fmt.Sprintf("id: %s", id),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError carries the identity provider's message unchanged as Message.
func NewAuthenticationError(message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   message,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnect,
		Message:   "Database connection error",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewSearchQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSearchQueryFailed,
		Message:   "Search query failed",
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewLocalStateFailedError(key string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLocalStateFailed,
		Message:   "Local state unavailable",
		Details:   fmt.Sprintf("key: %s, error: %s", key, errString(err)),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

func NewExternalServiceError(service string, err error) *StandardError {
	return &StandardError{
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("External service '%s' error", service),
		Details:   errString(err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// AsStandard returns err as a *StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandard(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		Cause:     err,
	}
}

// HasCode reports whether err is a StandardError carrying code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// UserMessage returns the text to show a user for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	return AsStandard(err).Message
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "REMOTE_") || strings.HasPrefix(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SUBSCRIPTION") || strings.Contains(codeStr, "EVENT"):
		return "REALTIME"
	case strings.HasPrefix(codeStr, "IMAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "AUTHENTICAT"):
		return "AUTH"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.HasPrefix(codeStr, "LOCAL"):
		return "DEVICE"
	default:
		return "OTHER"
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
