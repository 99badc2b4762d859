package domain

import "errors"

// Generic errors shared by every layer.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a record with the same key is already stored.
	ErrAlreadyExists = errors.New("already exists")
	// ErrValidation is returned when a request is malformed before any business rule runs.
	ErrValidation = errors.New("validation error")
)

// Error categories. Specific errors wrap exactly one of these so that callers
// can classify a failure with errors.Is.
var (
	// ErrAuthorization is returned when the caller does not hold the required role.
	ErrAuthorization = errors.New("authorization error")
	// ErrSequence is returned when an admission id is not the next expected id.
	ErrSequence = errors.New("sequence error")
	// ErrStaleRound is returned when a claimed round is not the current round.
	ErrStaleRound = errors.New("stale round")
	// ErrTiming is returned when an account is not ready to advance yet.
	ErrTiming = errors.New("timing error")
	// ErrState is returned when an account is in the wrong state for an operation.
	ErrState = errors.New("state error")
	// ErrOracle is returned when the price/swap venue fails.
	ErrOracle = errors.New("oracle error")
	// ErrTransfer is returned when a payout cannot be delivered.
	ErrTransfer = errors.New("transfer error")
)
