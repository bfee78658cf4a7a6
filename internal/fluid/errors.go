package fluid

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidLengthUnit indicates a non-positive number of grid cells per metre.
	ErrInvalidLengthUnit = errors.New("fluid: length unit must be positive")

	// ErrInvalidSize indicates a grid with a zero dimension.
	ErrInvalidSize = errors.New("fluid: grid size must be non-zero")

	// ErrInvalidDensity indicates a non-positive fluid density.
	ErrInvalidDensity = errors.New("fluid: density must be positive")

	// ErrInvalidSolver indicates a negative iteration or pass count.
	ErrInvalidSolver = errors.New("fluid: invalid solver settings")

	// ErrUnknownDomain indicates a domain id that was never added or was removed.
	ErrUnknownDomain = errors.New("fluid: unknown domain")

	// ErrNotReady indicates the domain has not finished loading.
	ErrNotReady = errors.New("fluid: domain not ready")

	// ErrDomainFailed matches every DomainError.
	ErrDomainFailed = errors.New("fluid: domain failed")
)

// DomainError is the terminal failure of one domain. Every poll after the
// failure returns the same error.
type DomainError struct {
	Domain  DomainID
	Tick    uint64
	State   State
	Wrapped error
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("fluid: domain %d failed in %s at tick %d: %v", e.Domain, e.State, e.Tick, e.Wrapped)
}

func (e *DomainError) Unwrap() error {
	return e.Wrapped
}

func (e *DomainError) Is(target error) bool {
	return target == ErrDomainFailed
}
