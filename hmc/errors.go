package hmc

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrAdaptationFailure is returned when the initial step size
	// search does not converge.
	ErrAdaptationFailure = errors.New("adaptation failure")
	// ErrDimensionMismatch is returned when the target returns a
	// gradient of the wrong length.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrNonFiniteStart is returned when the log density or its
	// gradient is not finite at the starting point.
	ErrNonFiniteStart = errors.New("non-finite log density at the starting point")
	// ErrInvalidConfig is returned for inconsistent settings.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// DomainError is returned by a target evaluated outside of its
// support. The sampler treats it as a divergence.
type DomainError struct {
	Msg string
}

// NewDomainError creates a new domain error.
func NewDomainError(format string, args ...interface{}) error {
	return &DomainError{Msg: fmt.Sprintf(format, args...)}
}

func (e *DomainError) Error() string {
	return "domain error: " + e.Msg
}

// IsDomainError reports whether the cause of err is a DomainError.
func IsDomainError(err error) bool {
	_, ok := errors.Cause(err).(*DomainError)
	return ok
}
