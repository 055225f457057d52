package asyncexec

import (
	"sync"
)

// CompletionState is the lifecycle of a Future.
type CompletionState int

const (
	Pending CompletionState = iota
	Completed
	Failed
)

func (s CompletionState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Continuation is caller-supplied code resumed on the task thread once the
// future settles. On failure value is nil and err carries the error kind.
type Continuation func(value interface{}, err error)

// Future is the caller-visible handle for one pending state request.
// Produced by the request (completed exactly once from the I/O side),
// consumed by the issuing task. Continuations never run inline on the
// completing goroutine; they are scheduled through the task mailbox, even
// when attached after completion, to avoid reentering the task's own stack.
type Future struct {
	mu            sync.Mutex
	state         CompletionState
	value         interface{}
	err           error
	continuations []Continuation

	mailbox *Mailbox
	done    chan struct{}
}

func NewFuture(mailbox *Mailbox) *Future {
	return &Future{
		mailbox: mailbox,
		done:    make(chan struct{}),
	}
}

// Complete settles the future with a value. A second settlement attempt is
// rejected with ErrFutureSettled.
func (f *Future) Complete(value interface{}) error {
	return f.settle(Completed, value, nil)
}

// Fail settles the future with an error.
func (f *Future) Fail(err error) error {
	return f.settle(Failed, nil, err)
}

func (f *Future) settle(state CompletionState, value interface{}, err error) error {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return ErrFutureSettled
	}
	f.state = state
	f.value = value
	f.err = err
	pending := f.continuations
	f.continuations = nil
	f.mu.Unlock()

	close(f.done)

	if len(pending) > 0 {
		// One mailbox task keeps attachment order.
		f.schedule(pending)
	}
	return nil
}

// OnComplete registers a continuation. Multiple continuations run in
// attachment order. Attaching after the task mailbox has been closed fails
// with TaskClosedError and the continuation never runs.
func (f *Future) OnComplete(c Continuation) error {
	f.mu.Lock()
	if f.state == Pending {
		if f.mailbox.Closed() {
			f.mu.Unlock()
			return &TaskClosedError{}
		}
		f.continuations = append(f.continuations, c)
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	// Already settled: scheduled for the next mailbox pass, not run inline.
	return f.schedule([]Continuation{c})
}

func (f *Future) schedule(continuations []Continuation) error {
	value, err := f.value, f.err
	return f.mailbox.Execute(func() {
		for _, c := range continuations {
			c(value, err)
		}
	})
}

// State returns the current completion state.
func (f *Future) State() CompletionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Result returns the settled value and error. Valid only after the future
// has settled.
func (f *Future) Result() (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// Done is closed when the future settles. Intended for code running off the
// task thread (tests, the checkpoint coordinator); task code should attach
// continuations instead of blocking.
func (f *Future) Done() <-chan struct{} {
	return f.done
}
