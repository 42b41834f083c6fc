package agent

import (
	"errors"
	"fmt"
)

var (
	// ErrLoopExceeded terminates a turn whose model kept asking for tools
	// past the round-trip limit.
	ErrLoopExceeded = errors.New("agent loop exceeded round-trip limit")

	// ErrTimeout terminates a turn whose model or tool call ran past its
	// deadline.
	ErrTimeout = errors.New("agent operation timed out")

	// ErrInvalidArguments is wrapped by tools that cannot decode their
	// arguments. The loop reports it to the model as a tool result.
	ErrInvalidArguments = errors.New("invalid tool arguments")
)

// TimeoutError records which operation ran out of time. It matches both
// ErrTimeout and the underlying context error.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() []error {
	return []error{ErrTimeout, e.Err}
}
