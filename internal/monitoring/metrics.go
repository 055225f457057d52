package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

// ExecutorMetrics tracks the batching executor's behaviour: how many
// requests flow through, how batches form, and why flushes trigger.
// Counters are atomics so the hot path never takes the mutex; only the
// flush-reason map does.
type ExecutorMetrics struct {
	requestsSubmitted int64
	requestsCompleted int64
	requestsFailed    int64
	requestsCancelled int64
	batchesDispatched int64
	entriesDispatched int64
	queueDepth        int64
	barriersActive    int64

	mu           sync.Mutex
	flushReasons map[string]int64
	lastDispatch time.Time
}

func NewExecutorMetrics() *ExecutorMetrics {
	return &ExecutorMetrics{
		flushReasons: make(map[string]int64),
	}
}

func (m *ExecutorMetrics) RequestSubmitted() {
	atomic.AddInt64(&m.requestsSubmitted, 1)
	atomic.AddInt64(&m.queueDepth, 1)
}

func (m *ExecutorMetrics) RequestCompleted() {
	atomic.AddInt64(&m.requestsCompleted, 1)
	atomic.AddInt64(&m.queueDepth, -1)
}

func (m *ExecutorMetrics) RequestFailed() {
	atomic.AddInt64(&m.requestsFailed, 1)
	atomic.AddInt64(&m.queueDepth, -1)
}

func (m *ExecutorMetrics) RequestCancelled() {
	atomic.AddInt64(&m.requestsCancelled, 1)
}

func (m *ExecutorMetrics) BatchDispatched(entries int, reason string) {
	atomic.AddInt64(&m.batchesDispatched, 1)
	atomic.AddInt64(&m.entriesDispatched, int64(entries))

	m.mu.Lock()
	m.flushReasons[reason]++
	m.lastDispatch = time.Now()
	m.mu.Unlock()
}

func (m *ExecutorMetrics) BarrierRegistered() {
	atomic.AddInt64(&m.barriersActive, 1)
}

func (m *ExecutorMetrics) BarrierCompleted() {
	atomic.AddInt64(&m.barriersActive, -1)
}

// Snapshot is a point-in-time copy of the executor counters.
type Snapshot struct {
	RequestsSubmitted int64            `json:"requests_submitted"`
	RequestsCompleted int64            `json:"requests_completed"`
	RequestsFailed    int64            `json:"requests_failed"`
	RequestsCancelled int64            `json:"requests_cancelled"`
	BatchesDispatched int64            `json:"batches_dispatched"`
	EntriesDispatched int64            `json:"entries_dispatched"`
	AverageBatchSize  float64          `json:"average_batch_size"`
	QueueDepth        int64            `json:"queue_depth"`
	BarriersActive    int64            `json:"barriers_active"`
	FlushReasons      map[string]int64 `json:"flush_reasons"`
	LastDispatch      time.Time        `json:"last_dispatch"`
}

func (m *ExecutorMetrics) Snapshot() Snapshot {
	snap := Snapshot{
		RequestsSubmitted: atomic.LoadInt64(&m.requestsSubmitted),
		RequestsCompleted: atomic.LoadInt64(&m.requestsCompleted),
		RequestsFailed:    atomic.LoadInt64(&m.requestsFailed),
		RequestsCancelled: atomic.LoadInt64(&m.requestsCancelled),
		BatchesDispatched: atomic.LoadInt64(&m.batchesDispatched),
		EntriesDispatched: atomic.LoadInt64(&m.entriesDispatched),
		QueueDepth:        atomic.LoadInt64(&m.queueDepth),
		BarriersActive:    atomic.LoadInt64(&m.barriersActive),
		FlushReasons:      make(map[string]int64),
	}

	m.mu.Lock()
	for reason, count := range m.flushReasons {
		snap.FlushReasons[reason] = count
	}
	snap.LastDispatch = m.lastDispatch
	m.mu.Unlock()

	if snap.BatchesDispatched > 0 {
		snap.AverageBatchSize = float64(snap.EntriesDispatched) / float64(snap.BatchesDispatched)
	}

	return snap
}
