// Package errs defines the error taxonomy shared by every state component.
// Handlers wrap these sentinels with context; callers branch with errors.Is.
package errs

import "github.com/pkg/errors"

var (
	// ErrUnauthorized is returned when the acting identity does not carry
	// the authority an operation requires.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalid is returned for arguments outside their permitted domain.
	ErrInvalid = errors.New("invalid argument")

	// ErrInsufficient is returned when a balance, deposit or quota cannot
	// cover the requested amount.
	ErrInsufficient = errors.New("insufficient")

	// ErrInvariant is returned when an operation would leave the system in
	// a state that violates a structural invariant.
	ErrInvariant = errors.New("invariant violation")

	// ErrConflict is returned when the current state forbids the operation,
	// e.g. initializing parameters twice or detaching a miner with no pool.
	ErrConflict = errors.New("state conflict")
)

// Unauthorizedf wraps ErrUnauthorized with a formatted message.
func Unauthorizedf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnauthorized, format, args...)
}

// NotFoundf wraps ErrNotFound with a formatted message.
func NotFoundf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// AlreadyExistsf wraps ErrAlreadyExists with a formatted message.
func AlreadyExistsf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrAlreadyExists, format, args...)
}

// Invalidf wraps ErrInvalid with a formatted message.
func Invalidf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalid, format, args...)
}

// Insufficientf wraps ErrInsufficient with a formatted message.
func Insufficientf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInsufficient, format, args...)
}

// Invariantf wraps ErrInvariant with a formatted message.
func Invariantf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvariant, format, args...)
}

// Conflictf wraps ErrConflict with a formatted message.
func Conflictf(format string, args ...interface{}) error {
	return errors.Wrapf(ErrConflict, format, args...)
}
