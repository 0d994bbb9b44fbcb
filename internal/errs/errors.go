package errs

import "errors"

// Common sentinel errors for cross-layer signaling.
var (
	ErrNotFound  = errors.New("not_found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid")
	// ErrInsufficientFunds rejects an expenditure or transfer-out that would
	// drive an account balance below zero.
	ErrInsufficientFunds = errors.New("insufficient_funds")
	// ErrExceedsRemaining rejects a payment larger than the remaining pledge
	// or debt balance.
	ErrExceedsRemaining = errors.New("exceeds_remaining")
	// ErrSameAccount rejects a transfer whose source and destination match.
	ErrSameAccount = errors.New("same_account")
	// ErrBelowPaid rejects shrinking a pledge's original amount below what
	// has already been paid.
	ErrBelowPaid = errors.New("below_paid_amount")
	// ErrCannotReceive indicates the target account is not flagged to
	// receive payments.
	ErrCannotReceive = errors.New("cannot_receive_payments")
	// ErrInactiveAccount indicates the account has been soft-deleted.
	ErrInactiveAccount = errors.New("inactive_account")
)
