package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when no transition is configured for
	// the trigger in the voucher's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTerminalState is returned when a transition is attempted on a
	// voucher whose status is a sink (completed or excluded).
	ErrTerminalState = errors.New("voucher is in a terminal status")

	// ErrPreconditionFailed is returned when every configured transition
	// for the trigger has a failing guard.
	ErrPreconditionFailed = errors.New("transition precondition failed")

	// ErrInvalidStatus is returned when a status is not a valid voucher status.
	ErrInvalidStatus = errors.New("invalid status")
)
