package settle

import (
	"errors"
	"fmt"
)

// ErrTimeout is returned when the optimizer could not finish within the
// configured solve timeout.
var ErrTimeout = errors.New("could not find a solution in time")

// DegenerateInputError reports an expense map that cannot be settled at all.
type DegenerateInputError struct {
	Reason string
}

func (e *DegenerateInputError) Error() string {
	return fmt.Sprintf("degenerate input: %s", e.Reason)
}

// SolverInternalError means the backend gave up on a model that always has a
// feasible assignment. It points at a bug, not at bad user input.
type SolverInternalError struct {
	Status Status
	Err    error
}

func (e *SolverInternalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver returned %s: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("solver returned %s", e.Status)
}

func (e *SolverInternalError) Unwrap() error {
	return e.Err
}
