// Package apperr defines the error kinds surfaced by the ordering backend.
// Each kind maps to exactly one HTTP status at the API boundary.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindReference
	KindNotFound
	KindInsufficientStock
	KindConflict
	KindUnauthorized
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindReference:
		return "reference"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindPersistence:
		return "persistence"
	default:
		return "unknown"
	}
}

// Error is safe to show to clients through Message; Err holds the detail
// that only goes to the server log.
type Error struct {
	Kind    Kind
	Message string

	// Set for product-scoped failures.
	ProductID int64
	Available int
	Requested int

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind, so errors.Is(err, apperr.ErrInsufficientStock)
// works regardless of the product involved.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrReference         = &Error{Kind: KindReference}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrPersistence       = &Error{Kind: KindPersistence}
)

func Validation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func Reference(msg string) *Error {
	return &Error{Kind: KindReference, Message: msg}
}

func ProductReference(productID int64) *Error {
	return &Error{
		Kind:      KindReference,
		Message:   fmt.Sprintf("O produto com ID %d não existe.", productID),
		ProductID: productID,
	}
}

func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func InsufficientStock(productID int64, available, requested int) *Error {
	return &Error{
		Kind:      KindInsufficientStock,
		Message:   fmt.Sprintf("A quantidade em estoque do produto com ID %d é insuficiente.", productID),
		ProductID: productID,
		Available: available,
		Requested: requested,
	}
}

func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func Persistence(msg string, err error) *Error {
	return &Error{Kind: KindPersistence, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain. Anything else
// is KindUnknown and treated as an internal failure.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// As is a shorthand for errors.As with *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
