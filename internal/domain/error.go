package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound        = errors.New("entity not found")
	ErrDuplicateKey    = errors.New("duplicate key")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnknownOption   = errors.New("unknown poll option")

	// Failure classes. Infra wraps the underlying cause with %w so callers
	// can tell them apart with errors.Is.
	ErrDelivery      = errors.New("notification delivery failed")
	ErrPersistence   = errors.New("record store failure")
	ErrTaskFailed    = errors.New("scheduled task failed")
	ErrConfiguration = errors.New("invalid configuration")

	ErrInvalidExecContext = errors.New("invalid execution context")
)
