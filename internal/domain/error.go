package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrRateLimited        = errors.New("too many requests")
	ErrSessionAlreadyUsed = errors.New("payment session already used")
	ErrPaymentAlreadyDone = errors.New("payment already done")
	ErrNoStripeCustomer   = errors.New("user has no billing customer")
	ErrInvalidSignature   = errors.New("invalid webhook signature")

	// Persistence errors
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid execution context")

	// ErrIntegrity marks a multi-step write that could not be committed as a whole.
	ErrIntegrity = errors.New("integrity failure")
)

// InputError reports which document of a batch could not be processed.
type InputError struct {
	Index int
	Err   error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %d: %v", e.Index, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }
