package asyncexec

import (
	"sync"
)

// Mailbox serializes continuations onto the single task thread. Producers
// (the executor's I/O goroutines) enqueue without blocking; the task thread
// drains in FIFO order. This is the only hand-off point between the I/O
// context and task-side user code.
type Mailbox struct {
	mu     sync.Mutex
	queue  []func()
	closed bool

	signal chan struct{}
}

func NewMailbox() *Mailbox {
	return &Mailbox{
		signal: make(chan struct{}, 1),
	}
}

// Execute enqueues fn for the task thread. It never runs fn inline.
// Returns TaskClosedError once the mailbox is closed.
func (m *Mailbox) Execute(fn func()) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return &TaskClosedError{}
	}
	m.queue = append(m.queue, fn)
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
		// A wakeup is already pending.
	}
	return nil
}

// Run processes enqueued continuations until Close is called and the queue
// has drained. It must be called from exactly one goroutine, the task
// thread.
func (m *Mailbox) Run() {
	for {
		batch, done := m.take()
		for _, fn := range batch {
			fn()
		}
		if done {
			return
		}
		if len(batch) == 0 {
			<-m.signal
		}
	}
}

// RunPending processes everything currently enqueued and returns. Useful
// for tasks that interleave state continuations with their own work loop.
func (m *Mailbox) RunPending() int {
	batch, _ := m.take()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Close tears the mailbox down. Continuations already enqueued still run;
// later Execute calls fail with TaskClosedError.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *Mailbox) take() (batch []func(), done bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	batch = m.queue
	m.queue = nil
	// Once closed, the batch we just took is the last of the queue.
	done = m.closed
	return batch, done
}
