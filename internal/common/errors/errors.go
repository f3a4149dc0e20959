// internal/common/errors/errors.go

// Package errors provides standardized error handling for the reminder service.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeStorage          ErrorCode = "STORAGE_ERROR"
	ErrCodeSendFailed       ErrorCode = "SEND_FAILED"
	ErrCodeConfiguration    ErrorCode = "CONFIGURATION_ERROR"
	ErrCodeDuplicatePatient ErrorCode = "DUPLICATE_PATIENT"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeCalendarSync     ErrorCode = "CALENDAR_SYNC_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewStorageError creates a retryable persistence error.
func NewStorageError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorage,
		Message:   "Database operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSendFailure creates a retryable mail transport error for one recipient.
func NewSendFailure(recipient string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSendFailed,
		Message:   "Email delivery failed",
		Details:   fmt.Sprintf("recipient: %s, error: %s", recipient, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewConfigurationError creates a non-retryable missing-settings error.
func NewConfigurationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfiguration,
		Message:   "Required configuration is missing",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDuplicatePatientError creates a non-retryable email collision error.
func NewDuplicatePatientError(email string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicatePatient,
		Message:   "An active patient with this email already exists",
		Details:   fmt.Sprintf("email: %s", email),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError creates a non-retryable missing-resource error.
func NewNotFoundError(resource, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   fmt.Sprintf("%s not found", resource),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewCalendarSyncError creates a retryable external-source error.
func NewCalendarSyncError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCalendarSync,
		Message:   "Calendar synchronization failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// HasCode reports whether err is (or wraps) a StandardError with the given code.
func HasCode(err error, code ErrorCode) bool {
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Code == code
	}
	return false
}
