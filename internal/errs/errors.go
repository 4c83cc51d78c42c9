// Package errs provides the unified error type used across minorm.
//
// Every layer (drivers, pool, registry, models) wraps its native errors
// into *errs.Error before returning them to callers. Callers use the Is*
// predicates to handle errors without importing driver-specific packages.
//
// Usage:
//
//	// In a driver, wrap native errors:
//	return errs.Wrap(errs.ErrKindBusy, "deadlock detected", mysqlErr)
//
//	// In a caller, check error kind:
//	if errs.IsTransient(err) {
//	    // safe to try again later
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing driver-specific codes.
// MySQL, Postgres and SQLite map their native errors to one of these
// kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, unknown model
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL syntax or runtime execution error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindPermissionDenied         // access denied on an object
	ErrKindSchema                   // invalid model declaration or mapping drift
	ErrKindConflict                 // unique / foreign key violation
	ErrKindBusy                     // deadlock, lock wait, too many connections
	ErrKindPoolClosed               // pool used or closed after teardown
	ErrKindRowCount                 // write affected an unexpected number of rows
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindPermissionDenied:
		return "permission_denied"
	case ErrKindSchema:
		return "schema"
	case ErrKindConflict:
		return "conflict"
	case ErrKindBusy:
		return "busy"
	case ErrKindPoolClosed:
		return "pool_closed"
	case ErrKindRowCount:
		return "row_count"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all minorm layers.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf is New with a format string.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result.
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a plain SQL execution failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsQueryError reports whether err happened while a statement was running,
// including constraint violations and lock contention.
func IsQueryError(err error) bool {
	switch KindOf(err) {
	case ErrKindQueryFailed, ErrKindConflict, ErrKindBusy:
		return true
	}
	return false
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsPermissionDenied reports whether err is an access control failure.
func IsPermissionDenied(err error) bool {
	return KindOf(err) == ErrKindPermissionDenied
}

// IsSchema reports whether err comes from model registration or verification.
func IsSchema(err error) bool {
	return KindOf(err) == ErrKindSchema
}

// IsConflict reports whether err is a unique or foreign key violation.
func IsConflict(err error) bool {
	return KindOf(err) == ErrKindConflict
}

// IsPoolClosed reports whether err was caused by using a closed pool.
func IsPoolClosed(err error) bool {
	return KindOf(err) == ErrKindPoolClosed
}

// IsRowCount reports whether a write touched an unexpected number of rows.
func IsRowCount(err error) bool {
	return KindOf(err) == ErrKindRowCount
}

// IsTransient reports whether the same operation may succeed if issued
// again later. Nothing in minorm retries on its own.
func IsTransient(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindTimeout, ErrKindBusy:
		return true
	}
	return false
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}
