package entity

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned when an operation is invoked without
	// an authenticated agent identity.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrVoucherNotFound is returned when a voucher lookup matches no row.
	ErrVoucherNotFound = errors.New("voucher not found")

	// ErrCodeExhausted is returned when voucher code generation gives up
	// after the bounded number of collision retries. Callers may retry the
	// whole operation.
	ErrCodeExhausted = errors.New("voucher code generation exhausted")

	// ErrDuplicateCode is returned when an insert loses a race for a voucher
	// code that looked free moments earlier. The caller redraws the code.
	ErrDuplicateCode = errors.New("voucher code already in use")

	// ErrTemplateNotFound is returned when no active document template
	// carries the requested tag.
	ErrTemplateNotFound = errors.New("document template not found")

	// ErrRenderTimeout is returned when the external rasterizer does not
	// answer within the caller-supplied deadline.
	ErrRenderTimeout = errors.New("document render timed out")
)

// ValidationError reports malformed caller input. It is surfaced verbatim
// and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
