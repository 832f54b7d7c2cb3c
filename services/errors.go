package services

import (
	"errors"
	"fmt"
)

// Kind is the machine-readable classification of a service failure. The
// HTTP layer maps kinds to status codes; the core only knows kinds.
type Kind string

const (
	KindNotFound            Kind = "not_found"
	KindForbidden           Kind = "forbidden"
	KindInvalidInput        Kind = "invalid_input"
	KindInvalidBetType      Kind = "invalid_bet_type"
	KindBetTypeDisabled     Kind = "bet_type_disabled"
	KindInvalidNumberFormat Kind = "invalid_number_format"
	KindAmountOutOfRange    Kind = "amount_out_of_range"
	KindBettingClosed       Kind = "betting_closed"
	KindInsufficientFunds   Kind = "insufficient_funds"
	KindInvalidTransition   Kind = "invalid_transition"
	KindConflict            Kind = "conflict"
	KindInternal            Kind = "internal"
)

// Error carries a kind plus a human-readable message. Validation errors
// are always detected before any mutation, so an Error reaching the caller
// implies zero persisted side effects.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// Errf builds a typed error.
func Errf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the kind from err, defaulting to KindInternal for
// untyped (infrastructure) failures.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
