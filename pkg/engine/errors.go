package engine

import "errors"

var (
	// ErrArtifactNotFound is returned when the artifact cannot be read or is not a loadable module
	ErrArtifactNotFound = errors.New("artifact not found")

	// ErrInstantiationFailed is returned when the artifact does not satisfy the invocation contract
	ErrInstantiationFailed = errors.New("instantiation failed")

	// ErrBudgetExhausted is returned when the invocation runs out of compute budget
	ErrBudgetExhausted = errors.New("budget exhausted")

	// ErrTrap is returned when the guest faults during execution
	ErrTrap = errors.New("guest trap")

	// ErrInvalidOutput is returned when the guest's return value cannot be decoded as text
	ErrInvalidOutput = errors.New("invalid guest output")
)
