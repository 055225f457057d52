package asyncexec

import (
	"errors"
	"fmt"
)

// EngineError wraps a storage-engine failure. It is surfaced to every
// request in the affected batch and never retried by this layer; retry
// policy belongs to the caller.
type EngineError struct {
	Op    string
	Cause error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("storage engine %s failed: %v", e.Op, e.Cause)
}

func (e *EngineError) Unwrap() error { return e.Cause }

// TaskClosedError reports a continuation attached after the owning task's
// mailbox was torn down. The continuation is dropped, never delivered.
type TaskClosedError struct{}

func (e *TaskClosedError) Error() string {
	return "task mailbox is closed"
}

// ErrRequestCancelled settles the future of a request cancelled before it
// reached dispatch.
var ErrRequestCancelled = errors.New("request cancelled before dispatch")

// ErrFutureSettled is returned when a future is completed a second time.
var ErrFutureSettled = errors.New("future already settled")

// ErrExecutorClosed is returned for submissions after the executor stopped.
var ErrExecutorClosed = errors.New("executor is closed")
