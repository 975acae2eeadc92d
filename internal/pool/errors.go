package pool

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by Map after Close.
	ErrClosed = errors.New("pool: closed")

	// ErrUnknownTask indicates a task kind no worker can execute.
	ErrUnknownTask = errors.New("pool: unknown task kind")

	// ErrUnknownStrategy indicates an unsupported pool strategy name.
	ErrUnknownStrategy = errors.New("pool: unknown strategy")
)

// TaskError wraps a worker failure with the position of the failing task.
type TaskError struct {
	Index   int
	Kind    TaskKind
	Wrapped error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("pool: task %d (%s): %v", e.Index, e.Kind, e.Wrapped)
}

func (e *TaskError) Unwrap() error {
	return e.Wrapped
}
