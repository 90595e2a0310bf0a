// Package apperr defines the storefront error taxonomy and its HTTP mapping.
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind classifies a failure for the transport boundary.
type Kind int

const (
	KindServer Kind = iota
	KindValidation
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
)

// Error is a classified domain error. Values are compared by identity, so the
// package-level sentinels below work with errors.Is after wrapping.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// New returns a new sentinel.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

var (
	ErrValidation      = New(KindValidation, "validation_failed", "invalid input")
	ErrInvalidProduct  = New(KindValidation, "invalid_product", "invalid product id")
	ErrInvalidStatus   = New(KindValidation, "invalid_status", "invalid status. Allowed values: Pending, Paid, Shipped, Delivered, Cancelled")
	ErrInvalidRating   = New(KindValidation, "invalid_rating", "rating must be between 1 and 5")
	ErrBadCredentials  = New(KindValidation, "invalid_credentials", "Invalid credentials")
	ErrUnauthorized    = New(KindUnauthorized, "unauthorized", "authentication required")
	ErrForbidden       = New(KindForbidden, "forbidden", "not allowed to access this resource")
	ErrNotFound        = New(KindNotFound, "not_found", "resource not found")
	ErrAlreadyPaid     = New(KindConflict, "already_paid", "order already paid")
	ErrDuplicateReview = New(KindConflict, "duplicate_review", "you have already reviewed this product")
	ErrVersionConflict = New(KindConflict, "version_conflict", "resource was modified concurrently")
	ErrConflict        = New(KindConflict, "conflict", "resource already exists")
	ErrEmailTaken      = New(KindConflict, "email_taken", "Email already in use")
)

// Validation wraps ErrValidation with a specific message.
func Validation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// NotFound wraps ErrNotFound naming the missing resource.
func NotFound(format string, args ...interface{}) error {
	return errors.Wrapf(ErrNotFound, format, args...)
}

// As extracts the classified error from err's chain. Unclassified errors are
// reported as a server error.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindServer, Code: "server_error", Message: "internal server error"}
}

// HTTPStatus maps a kind to its response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the message safe to return to a client: the full wrapped
// message for classified errors, a generic one for server errors.
func PublicMessage(err error) string {
	e := As(err)
	if e.Kind == KindServer {
		return e.Message
	}
	return err.Error()
}
