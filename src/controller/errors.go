package controller

import (
	"errors"
	"fmt"
)

// ErrNoSignal marks a cycle that ended without a tradable signal. Callers
// treat it as a clean outcome, not a failure.
var ErrNoSignal = errors.New("no tradable signal for this cycle")

// FatalError marks a failure the run cannot recover from (connection loss,
// unusable market data). The process should exit non-zero on it.
type FatalError struct {
	Stage string
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal error at %s: %v", e.Stage, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

// Fatal wraps an error as fatal for the current run.
func Fatal(stage string, err error) error {
	return &FatalError{Stage: stage, Err: err}
}

// IsFatal reports whether err carries a FatalError anywhere in its chain.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
