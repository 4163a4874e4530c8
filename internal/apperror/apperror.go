// Package apperror defines the error taxonomy shared by every layer of the
// library backend.
//
// Each failure kind has a sentinel (ErrNotFound, ErrForbidden, ...) and a
// constructor returning *AppError. The constructors attach a human-readable
// Message which the bridge hands to the UI unchanged, while the sentinel
// lets callers branch with errors.Is no matter how many times the error was
// wrapped on the way up:
//
//	repo returns:      apperror.NotFound("user", uid)
//	service wraps:     fmt.Errorf("service/user: renaming: %w", err)
//	handler checks:    errors.Is(err, apperror.ErrNotFound) → 404
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrValidation         = errors.New("Validation Error")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotVerified        = errors.New("not verified")
	ErrIO                 = errors.New("io failure")
	ErrCorruptStore       = errors.New("corrupt store")
	ErrDatabase           = errors.New("database error")
	ErrStoreBusy          = errors.New("store busy")

	// ErrDuplicateUsername is a conflict on the username; errors.Is also
	// matches ErrConflict.
	ErrDuplicateUsername = fmt.Errorf("duplicate username: %w", ErrConflict)
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: underlying I/O or parse error, for logs only
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the underlying cause, so
// errors.Is(err, fs.ErrNotExist) keeps working through an IOFailure.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// UserNotFound is NotFound phrased the way the account screens show it.
func UserNotFound() *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: "User not found",
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// DuplicateUsername reports that another account already holds username.
func DuplicateUsername(username string) *AppError {
	return &AppError{
		Err:     ErrDuplicateUsername,
		Message: "Username already taken",
		Field:   "username",
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid password",
	}
}

func NotVerified() *AppError {
	return &AppError{
		Err:     ErrNotVerified,
		Message: "Account not yet verified",
	}
}

// IOFailure wraps a filesystem error (copy, stat, read, delete).
// The op prefix becomes part of the message, e.g. "Upload failed: ...".
func IOFailure(op string, cause error) *AppError {
	return &AppError{
		Err:     ErrIO,
		Message: fmt.Sprintf("%s: %v", op, cause),
		Cause:   cause,
	}
}

// CorruptStore reports a document file that exists but cannot be parsed.
// Unlike missing fields, this is never repaired silently.
func CorruptStore(cause error) *AppError {
	return &AppError{
		Err:     ErrCorruptStore,
		Message: "Library database is corrupt and cannot be read",
		Cause:   cause,
	}
}

// Database reports a document that parses but is structurally unusable,
// e.g. "users" present but not a list.
func Database(message string) *AppError {
	return &AppError{
		Err:     ErrDatabase,
		Message: "Database error: " + message,
	}
}

func StoreBusy() *AppError {
	return &AppError{
		Err:     ErrStoreBusy,
		Message: "Library database is busy, try again",
	}
}

// Kind returns the machine-readable name of err's category, used as the
// "error" field of bridge responses.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation_error"
	case errors.Is(err, ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, ErrNotVerified):
		return "not_verified"
	case errors.Is(err, ErrIO):
		return "io_failure"
	case errors.Is(err, ErrCorruptStore):
		return "corrupt_store"
	case errors.Is(err, ErrDatabase):
		return "database_error"
	case errors.Is(err, ErrStoreBusy):
		return "store_busy"
	}
	return "internal_error"
}
