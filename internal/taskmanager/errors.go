package taskmanager

import (
	"fmt"

	"neotask/internal/shared"
)

var (
	// ErrTaskTimeout is reported when a task stays current past its deadline.
	ErrTaskTimeout = fmt.Errorf("task manager: %w", shared.ErrTimeout)
	// ErrNotInStepMode is returned by Step when the manager ticks automatically.
	ErrNotInStepMode = fmt.Errorf("task manager: step is only allowed in step mode: %w", shared.ErrConflict)
	// ErrDisposed is returned by operations on a disposed manager.
	ErrDisposed = fmt.Errorf("task manager: disposed: %w", shared.ErrConflict)
	// ErrStackActive is returned by BeginStack when a stack is already open.
	ErrStackActive = fmt.Errorf("task manager: stack already active: %w", shared.ErrConflict)
	// ErrNoStack is returned by InsertStack when no stack is open.
	ErrNoStack = fmt.Errorf("task manager: no active stack: %w", shared.ErrConflict)
)

// panicError carries a recovered task panic.
type panicError struct {
	value any
}

func (e panicError) Error() string { return fmt.Sprintf("task panicked: %v", e.value) }

func (e panicError) Unwrap() error { return shared.ErrInternal }
