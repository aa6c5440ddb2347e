// Package errors defines the failure kinds reported by board operations.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes.
const (
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeBoardNotFound  = "BOARD_NOT_FOUND"
	ErrCodeColumnNotFound = "COLUMN_NOT_FOUND"
	ErrCodeTaskNotFound   = "TASK_NOT_FOUND"
	ErrCodeStorageFailure = "STORAGE_FAILURE"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// AppError is a board operation failure with a kind, a human readable
// message and the HTTP status used by the transport layer.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"error"`
	HTTPStatus int               `json:"-"`
	Details    map[string]string `json:"details,omitempty"`
	Err        error             `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, BoardNotFound(""))
// holds for any board-not-found failure.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ValidationError reports a missing or malformed field.
func ValidationError(field, message string) *AppError {
	return &AppError{
		Code:       ErrCodeValidation,
		Message:    fmt.Sprintf("validation failed for field '%s': %s", field, message),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]string{"field": field},
	}
}

// BoardNotFound reports an unknown board id.
func BoardNotFound(id string) *AppError {
	return notFound(ErrCodeBoardNotFound, "board", "boardId", id)
}

// ColumnNotFound reports an unknown column id.
func ColumnNotFound(id string) *AppError {
	return notFound(ErrCodeColumnNotFound, "column", "columnId", id)
}

// TaskNotFound reports an unknown task id.
func TaskNotFound(id string) *AppError {
	return notFound(ErrCodeTaskNotFound, "task", "taskId", id)
}

func notFound(code, resource, key, id string) *AppError {
	return &AppError{
		Code:       code,
		Message:    fmt.Sprintf("%s with id '%s' not found", resource, id),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{key: id},
	}
}

// StorageFailure wraps an error from the persistence layer. The underlying
// message is passed through unchanged.
func StorageFailure(err error) *AppError {
	msg := "storage failure"
	if err != nil {
		msg = err.Error()
	}
	return &AppError{
		Code:       ErrCodeStorageFailure,
		Message:    msg,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// Conflict reports a request that clashes with existing state.
func Conflict(message string) *AppError {
	return &AppError{
		Code:       ErrCodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// InternalError wraps an unexpected failure.
func InternalError(message string, err error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// FromResponse rebuilds an AppError from a decoded error body. Unknown or
// empty codes are derived from the status.
func FromResponse(status int, code, message string, details map[string]string) *AppError {
	if code == "" {
		switch {
		case status == http.StatusBadRequest:
			code = ErrCodeValidation
		case status == http.StatusNotFound:
			code = ErrCodeBoardNotFound
		case status == http.StatusConflict:
			code = ErrCodeConflict
		default:
			code = ErrCodeInternal
		}
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &AppError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// CodeOf returns the AppError code of err, or "" when err is not an AppError.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsNotFound reports whether err is any of the not-found kinds.
func IsNotFound(err error) bool {
	switch CodeOf(err) {
	case ErrCodeBoardNotFound, ErrCodeColumnNotFound, ErrCodeTaskNotFound:
		return true
	}
	return false
}

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool {
	return CodeOf(err) == ErrCodeValidation
}

// GetHTTPStatus returns the status for err, 500 for anything that is not an AppError.
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
