package util

import (
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewFetchError wraps a failure reaching the source sheet.
func NewFetchError(message string, err error) error {
	return &DomainError{
		Code:       "FETCH_FAILED",
		Message:    message,
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

// NewNoMatchingDateColumn signals that no date column matched the target day.
func NewNoMatchingDateColumn(targetDay string, candidates []string) error {
	return NewDomainError("NO_MATCHING_DATE_COLUMN", "no date column matches the target day", http.StatusUnprocessableEntity, map[string]any{
		"target_day": targetDay,
		"candidates": candidates,
	})
}

// NewNoRowsAfterFilter signals that the filter stages removed every row.
func NewNoRowsAfterFilter() error {
	return NewDomainError("NO_ROWS_AFTER_FILTER", "no rows remain after filtering", http.StatusUnprocessableEntity, nil)
}

// NewSchemaMismatch rejects an import whose header deviates from the canonical schema.
func NewSchemaMismatch(missing, extra, duplicated []string) error {
	return NewDomainError("SCHEMA_MISMATCH", "uploaded header does not match the canonical schema", http.StatusBadRequest, map[string]any{
		"missing_columns":    missing,
		"extra_columns":      extra,
		"duplicated_columns": duplicated,
	})
}

// NewDuplicatePendingAction rejects a request while a confirmation is open.
func NewDuplicatePendingAction(conversationID string) error {
	return NewDomainError("DUPLICATE_PENDING_ACTION", "a pending action already exists for this conversation", http.StatusConflict, map[string]any{
		"conversation_id": conversationID,
	})
}

// NewInvalidStateTransition rejects confirm/cancel when nothing is pending.
func NewInvalidStateTransition(message string) error {
	return NewDomainError("INVALID_STATE_TRANSITION", message, http.StatusConflict, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// HasCode reports whether err carries the given domain error code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
