// Copyright (c) 2024 The Lido developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package errs

import (
	"errors"
	"fmt"
)

// Kind classifies failures of registry operations.
type Kind int

const (
	// NotFound unknown operator id or key index.
	NotFound Kind = iota + 1
	// InvalidArgument malformed input: zero address, empty or oversized
	// name, mismatched blob length, out-of-bound count or index.
	InvalidArgument
	// InvariantViolation the requested mutation would break a counter
	// invariant or touch an immutable key.
	InvariantViolation
	// CapacityExceeded a hard cap has been reached.
	CapacityExceeded
	// Unauthorized the caller lacks the required permission.
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case InvalidArgument:
		return "invalid argument"
	case InvariantViolation:
		return "invariant violation"
	case CapacityExceeded:
		return "capacity exceeded"
	case Unauthorized:
		return "unauthorized"
	default:
		return "unknown"
	}
}

// Error is a classified registry error.
type Error struct {
	kind    Kind
	message string
}

func (e *Error) Error() string {
	return e.message
}

// Kind returns the classification of the error.
func (e *Error) Kind() Kind {
	return e.kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

func NewNotFound(format string, args ...any) *Error {
	return newError(NotFound, format, args...)
}

func NewInvalidArgument(format string, args ...any) *Error {
	return newError(InvalidArgument, format, args...)
}

func NewInvariantViolation(format string, args ...any) *Error {
	return newError(InvariantViolation, format, args...)
}

func NewCapacityExceeded(format string, args ...any) *Error {
	return newError(CapacityExceeded, format, args...)
}

func NewUnauthorized(format string, args ...any) *Error {
	return newError(Unauthorized, format, args...)
}

// KindOf returns the kind of err, or 0 if err carries no classification.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

func IsNotFound(err error) bool { return KindOf(err) == NotFound }

func IsInvalidArgument(err error) bool { return KindOf(err) == InvalidArgument }

func IsInvariantViolation(err error) bool { return KindOf(err) == InvariantViolation }

func IsCapacityExceeded(err error) bool { return KindOf(err) == CapacityExceeded }

func IsUnauthorized(err error) bool { return KindOf(err) == Unauthorized }
