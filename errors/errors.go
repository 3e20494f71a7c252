// Package errors provides error handling for idxtools.
//
// This package re-exports github.com/cockroachdb/errors and adds the index
// error taxonomy. Every failure surfaced by the index engine wraps one of the
// sentinels below, so callers can branch with errors.Is or the IsXError
// helpers without matching on message text.
//
// Usage:
//
//	if err := ix.Insert(rec); err != nil {
//	    if errors.IsValidationError(err) {
//	        // bad input, report and continue
//	    }
//	    return errors.Wrap(err, "failed to insert record")
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	Mark         = crdb.Mark
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint    = crdb.WithHint
	WithHintf   = crdb.WithHintf
	WithDetail  = crdb.WithDetail
	WithDetailf = crdb.WithDetailf
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Sentinel errors for the index engine.
// Wrap these with the NewXError helpers to add context while preserving the type.
var (
	// ErrFormat indicates a malformed line, too few columns or a missing header
	ErrFormat = New("format error")

	// ErrLookup indicates a query referenced an attribute that is not indexed
	ErrLookup = New("lookup error")

	// ErrValidation indicates a record or predicate failed validation
	ErrValidation = New("validation error")

	// ErrLock indicates the index lock could not be acquired or released
	ErrLock = New("lock error")

	// ErrIO indicates the index source or an output could not be read or written
	ErrIO = New("i/o error")

	// ErrModified indicates the backing file changed since it was loaded
	ErrModified = New("index modified since load")
)

// NewFormatError creates a format error with a formatted message
func NewFormatError(format string, args ...interface{}) error {
	return Wrap(ErrFormat, Newf(format, args...).Error())
}

// NewLookupError creates a lookup error with a formatted message
func NewLookupError(format string, args ...interface{}) error {
	return Wrap(ErrLookup, Newf(format, args...).Error())
}

// NewValidationError creates a validation error with a formatted message
func NewValidationError(format string, args ...interface{}) error {
	return Wrap(ErrValidation, Newf(format, args...).Error())
}

// NewLockError creates a lock error with a formatted message
func NewLockError(format string, args ...interface{}) error {
	return Wrap(ErrLock, Newf(format, args...).Error())
}

// WrapIO marks err as an i/o error with context.
// The original error stays reachable through errors.Is and errors.As.
func WrapIO(err error, context string) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(Wrap(err, context), ErrIO)
}

// WrapIOf is WrapIO with a formatted context
func WrapIOf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return crdb.Mark(Wrapf(err, format, args...), ErrIO)
}

// IsFormatError checks if an error is or wraps ErrFormat
func IsFormatError(err error) bool {
	return err != nil && Is(err, ErrFormat)
}

// IsLookupError checks if an error is or wraps ErrLookup
func IsLookupError(err error) bool {
	return err != nil && Is(err, ErrLookup)
}

// IsValidationError checks if an error is or wraps ErrValidation
func IsValidationError(err error) bool {
	return err != nil && Is(err, ErrValidation)
}

// IsLockError checks if an error is or wraps ErrLock
func IsLockError(err error) bool {
	return err != nil && Is(err, ErrLock)
}

// IsIOError checks if an error is or wraps ErrIO
func IsIOError(err error) bool {
	return err != nil && Is(err, ErrIO)
}

// IsModifiedError checks if an error is or wraps ErrModified
func IsModifiedError(err error) bool {
	return err != nil && Is(err, ErrModified)
}

// Exit codes returned by the CLI, following sysexits.h where one fits.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitValidation  = 64 // EX_USAGE
	ExitFormat      = 65 // EX_DATAERR
	ExitLookup      = 66 // EX_NOINPUT
	ExitIO          = 74 // EX_IOERR
	ExitLockOrStale = 75 // EX_TEMPFAIL
)

// ExitCode maps err onto a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case IsValidationError(err):
		return ExitValidation
	case IsFormatError(err):
		return ExitFormat
	case IsLookupError(err):
		return ExitLookup
	case IsIOError(err):
		return ExitIO
	case IsLockError(err), IsModifiedError(err):
		return ExitLockOrStale
	default:
		return ExitFailure
	}
}
