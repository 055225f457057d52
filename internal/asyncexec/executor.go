package asyncexec

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"statekv/internal/config"
	"statekv/internal/logging"
	"statekv/internal/monitoring"
	"statekv/internal/storage"
	"statekv/internal/table"
)

// Executor accumulates submitted requests, forms batches grouped by
// (operation kind, binding), and dispatches them to the storage engine on
// a pool of I/O goroutines. The submitting task thread never blocks here:
// Submit appends under a short mutex and at most signals the flush channel.
//
// Per-key ordering: a write and any later request on the same key are never
// in flight at the same time. Conflicting requests are held in the queue
// until the earlier request settles, which forces the batch boundary the
// ordering invariant requires. Requests on distinct keys move freely.
type Executor struct {
	engine  storage.StorageEngine
	cfg     config.ExecutorConfig
	logger  *logging.Logger
	metrics *monitoring.ExecutorMetrics
	mailbox *Mailbox

	mu             sync.Mutex
	pending        []*Request
	pendingBytes   int
	blockedPending bool
	closed         bool
	seq            uint64
	unsettled      map[uint64]struct{}
	barriers       []*barrier
	inflightKeys   map[string]*keyTraffic
	inflightBinds  map[table.Handle]*bindingTraffic

	flushCh    chan struct{}
	stopCh     chan struct{}
	dispatchCh chan *batch
	workerWg   sync.WaitGroup
	loopWg     sync.WaitGroup
}

// keyTraffic counts dispatched-but-unsettled requests per physical key.
type keyTraffic struct {
	reads  int
	writes int
}

// bindingTraffic counts in-flight scans and writes per binding; scans are
// ordered against writes at binding granularity.
type bindingTraffic struct {
	writes int
	scans  int
}

// batch is a transient group of same-kind, same-binding requests sent to
// the engine in one call. It is never observable outside the executor.
type batch struct {
	id       string
	kind     Kind
	binding  *table.Binding
	requests []*Request
}

func NewExecutor(engine storage.StorageEngine, cfg config.ExecutorConfig, mailbox *Mailbox, logger *logging.Logger, metrics *monitoring.ExecutorMetrics) *Executor {
	if metrics == nil {
		metrics = monitoring.NewExecutorMetrics()
	}

	e := &Executor{
		engine:        engine,
		cfg:           cfg,
		logger:        logger,
		metrics:       metrics,
		mailbox:       mailbox,
		unsettled:     make(map[uint64]struct{}),
		inflightKeys:  make(map[string]*keyTraffic),
		inflightBinds: make(map[table.Handle]*bindingTraffic),
		flushCh:       make(chan struct{}, 1),
		stopCh:        make(chan struct{}),
		dispatchCh:    make(chan *batch, cfg.IOWorkers*2),
	}

	e.workerWg.Add(cfg.IOWorkers)
	for i := 0; i < cfg.IOWorkers; i++ {
		go e.worker()
	}

	e.loopWg.Add(1)
	go e.runLoop()

	return e
}

// Submit enqueues a request. Non-blocking from the caller's perspective;
// the request's future settles asynchronously. Submitting to a closed
// executor fails the future immediately.
func (e *Executor) Submit(r *Request) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		r.future.Fail(ErrExecutorClosed)
		r.state.Store(int32(StateFailed))
		return
	}

	e.seq++
	r.markQueued(e.seq, e.onSettled)
	e.unsettled[r.seq] = struct{}{}
	e.pending = append(e.pending, r)
	e.pendingBytes += r.payloadSize()

	shouldFlush := len(e.pending) >= e.cfg.MaxBatchSize || e.pendingBytes >= e.cfg.MaxBatchBytes
	e.mu.Unlock()

	e.metrics.RequestSubmitted()

	if shouldFlush {
		e.signalFlush()
	}
}

// Metrics exposes the executor counters.
func (e *Executor) Metrics() *monitoring.ExecutorMetrics { return e.metrics }

// Close flushes and settles everything still queued, then stops the I/O
// workers. Idempotent.
func (e *Executor) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	close(e.stopCh)
	e.loopWg.Wait()

	close(e.dispatchCh)
	e.workerWg.Wait()
	return nil
}

func (e *Executor) signalFlush() {
	select {
	case e.flushCh <- struct{}{}:
	default:
		// A flush is already scheduled.
	}
}

func (e *Executor) runLoop() {
	defer e.loopWg.Done()

	timer := time.NewTimer(e.cfg.BatchTimeout)
	defer timer.Stop()

	for {
		select {
		case <-e.stopCh:
			e.drainRemaining()
			return

		case <-e.flushCh:
			e.flush("size_limit")
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(e.cfg.BatchTimeout)

		case <-timer.C:
			e.flush("timeout")
			timer.Reset(e.cfg.BatchTimeout)
		}
	}
}

// drainRemaining keeps flushing until every queued request has been
// dispatched or dropped. Held requests become eligible as their conflicts
// settle, so this can take several rounds.
func (e *Executor) drainRemaining() {
	for {
		e.flush("shutdown")

		e.mu.Lock()
		empty := len(e.pending) == 0
		e.mu.Unlock()
		if empty {
			return
		}

		select {
		case <-e.flushCh:
		case <-time.After(time.Millisecond):
		}
	}
}

// flush forms dispatchable batches out of the pending queue. Runs only on
// the executor's own goroutine.
func (e *Executor) flush(reason string) {
	e.mu.Lock()

	if len(e.pending) == 0 {
		e.mu.Unlock()
		return
	}

	sel := newSelection()
	var taken, held, cancelled []*Request

	for _, r := range e.pending {
		if r.Cancelled() {
			cancelled = append(cancelled, r)
			continue
		}
		if e.conflicts(r, sel) {
			sel.block(r)
			held = append(held, r)
			continue
		}
		sel.admit(r)
		taken = append(taken, r)
	}

	// Taken requests occupy their keys until they settle.
	for _, r := range taken {
		e.acquire(r)
	}

	e.pending = held
	e.pendingBytes = 0
	for _, r := range held {
		e.pendingBytes += r.payloadSize()
	}
	e.blockedPending = len(held) > 0

	e.mu.Unlock()

	for _, r := range cancelled {
		e.metrics.RequestCancelled()
		r.fail(ErrRequestCancelled)
	}

	for _, b := range groupBatches(taken, e.cfg.MaxBatchSize) {
		for _, r := range b.requests {
			r.markDispatched()
		}
		e.metrics.BatchDispatched(len(b.requests), reason)
		e.dispatchCh <- b
	}
}

// selection tracks what this flush round has admitted or blocked, so later
// queue entries cannot jump ahead of a held same-key request.
type selection struct {
	roundReads    map[string]bool
	roundWrites   map[string]bool
	blockedKeys   map[string]bool
	roundScans    map[table.Handle]bool
	roundBindl    map[table.Handle]bool
	blockedScans  map[table.Handle]bool
	blockedWrites map[table.Handle]bool
}

func newSelection() *selection {
	return &selection{
		roundReads:    make(map[string]bool),
		roundWrites:   make(map[string]bool),
		blockedKeys:   make(map[string]bool),
		roundScans:    make(map[table.Handle]bool),
		roundBindl:    make(map[table.Handle]bool),
		blockedScans:  make(map[table.Handle]bool),
		blockedWrites: make(map[table.Handle]bool),
	}
}

func (s *selection) admit(r *Request) {
	write := r.kind.isWrite()
	for _, k := range r.conflictKeys() {
		if write {
			s.roundWrites[string(k)] = true
		} else {
			s.roundReads[string(k)] = true
		}
	}
	h := r.binding.Handle
	if r.kind == KindIterSeek {
		s.roundScans[h] = true
	}
	if write {
		s.roundBindl[h] = true
	}
}

func (s *selection) block(r *Request) {
	for _, k := range r.conflictKeys() {
		s.blockedKeys[string(k)] = true
	}
	h := r.binding.Handle
	if r.kind == KindIterSeek {
		s.blockedScans[h] = true
	}
	if r.kind.isWrite() {
		s.blockedWrites[h] = true
	}
}

// conflicts decides whether r must wait for an earlier request. Within a
// round: a write conflicts with any same-key request, a read only with
// writes. Against in-flight traffic the same rules apply. Scans order
// against writes at binding granularity in both directions.
func (e *Executor) conflicts(r *Request, sel *selection) bool {
	write := r.kind.isWrite()

	for _, kb := range r.conflictKeys() {
		k := string(kb)
		if sel.blockedKeys[k] {
			return true
		}
		if sel.roundWrites[k] {
			return true
		}
		if write && sel.roundReads[k] {
			return true
		}
		if t := e.inflightKeys[k]; t != nil {
			if t.writes > 0 {
				return true
			}
			if write && t.reads > 0 {
				return true
			}
		}
	}

	h := r.binding.Handle
	if r.kind == KindIterSeek {
		if sel.roundBindl[h] || sel.blockedWrites[h] {
			return true
		}
		if t := e.inflightBinds[h]; t != nil && t.writes > 0 {
			return true
		}
	}
	if write {
		if sel.roundScans[h] || sel.blockedScans[h] {
			return true
		}
		if t := e.inflightBinds[h]; t != nil && t.scans > 0 {
			return true
		}
	}

	return false
}

// acquire records r's keys as in flight. Caller holds e.mu.
func (e *Executor) acquire(r *Request) {
	write := r.kind.isWrite()
	for _, kb := range r.conflictKeys() {
		k := string(kb)
		t := e.inflightKeys[k]
		if t == nil {
			t = &keyTraffic{}
			e.inflightKeys[k] = t
		}
		if write {
			t.writes++
		} else {
			t.reads++
		}
	}

	h := r.binding.Handle
	if r.kind == KindIterSeek || write {
		t := e.inflightBinds[h]
		if t == nil {
			t = &bindingTraffic{}
			e.inflightBinds[h] = t
		}
		if r.kind == KindIterSeek {
			t.scans++
		} else {
			t.writes++
		}
	}
}

// release undoes acquire once r settles. Caller holds e.mu.
func (e *Executor) release(r *Request) {
	write := r.kind.isWrite()
	for _, kb := range r.conflictKeys() {
		k := string(kb)
		if t := e.inflightKeys[k]; t != nil {
			if write {
				t.writes--
			} else {
				t.reads--
			}
			if t.reads <= 0 && t.writes <= 0 {
				delete(e.inflightKeys, k)
			}
		}
	}

	h := r.binding.Handle
	if r.kind == KindIterSeek || write {
		if t := e.inflightBinds[h]; t != nil {
			if r.kind == KindIterSeek {
				t.scans--
			} else {
				t.writes--
			}
			if t.scans <= 0 && t.writes <= 0 {
				delete(e.inflightBinds, h)
			}
		}
	}
}

// onSettled runs for every request that went through the queue, no matter
// how it ended. It frees the request's ordering slots, advances drain
// barriers, and wakes the flush loop if held requests may now be eligible.
func (e *Executor) onSettled(r *Request) {
	if r.State() == StateCompleted {
		e.metrics.RequestCompleted()
	} else {
		e.metrics.RequestFailed()
	}

	e.mu.Lock()
	delete(e.unsettled, r.seq)
	// Only dispatched requests acquired ordering slots.
	if r.wasDispatched() {
		e.release(r)
	}
	completed := e.advanceBarriers(r.seq)
	wake := e.blockedPending
	e.mu.Unlock()

	for _, b := range completed {
		e.metrics.BarrierCompleted()
		b.future.Complete(nil)
	}

	if wake {
		e.signalFlush()
	}
}

// groupBatches splits the admitted requests into engine calls by
// (kind, binding), capping each at maxSize.
func groupBatches(taken []*Request, maxSize int) []*batch {
	type groupKey struct {
		kind   Kind
		handle table.Handle
	}

	groups := make(map[groupKey]*batch)
	var batches []*batch

	for _, r := range taken {
		gk := groupKey{r.kind, r.binding.Handle}
		b := groups[gk]
		if b == nil || len(b.requests) >= maxSize {
			b = &batch{
				id:      uuid.NewString(),
				kind:    r.kind,
				binding: r.binding,
			}
			groups[gk] = b
			batches = append(batches, b)
		}
		b.requests = append(b.requests, r)
	}

	return batches
}

func (e *Executor) worker() {
	defer e.workerWg.Done()

	for b := range e.dispatchCh {
		e.executeBatch(b)
	}
}

// executeBatch performs the blocking engine call for one batch and fans the
// result back out to each member request. An engine-level error fails every
// request in the batch with an EngineError; nothing is retried here.
func (e *Executor) executeBatch(b *batch) {
	ctx := context.WithValue(context.Background(), logging.CorrelationIDKey, b.id)
	start := time.Now()
	var opErr error

	switch b.kind {
	case KindGet:
		keys := make([][]byte, len(b.requests))
		for i, r := range b.requests {
			keys[i] = r.physicalKey
		}
		results, err := e.engine.BatchGet(keys)
		if err != nil {
			opErr = err
			e.failBatch(b, "batch_get", err)
			break
		}
		for i, r := range b.requests {
			r.completeWithRaw(results[i])
		}

	case KindMultiGet:
		var flat [][]byte
		offsets := make([]int, len(b.requests))
		for i, r := range b.requests {
			offsets[i] = len(flat)
			flat = append(flat, r.physicalKeys...)
		}
		results, err := e.engine.BatchGet(flat)
		if err != nil {
			opErr = err
			e.failBatch(b, "batch_get", err)
			break
		}
		for i, r := range b.requests {
			r.completeMulti(results[offsets[i] : offsets[i]+len(r.physicalKeys)])
		}

	case KindPut:
		items := make([]storage.KeyValue, len(b.requests))
		for i, r := range b.requests {
			items[i] = storage.KeyValue{Key: r.physicalKey, Value: r.value}
		}
		if err := e.engine.BatchPut(items); err != nil {
			opErr = err
			e.failBatch(b, "batch_put", err)
			break
		}
		for _, r := range b.requests {
			r.completeWithRaw(storage.KeyValue{})
		}

	case KindDelete:
		keys := make([][]byte, len(b.requests))
		for i, r := range b.requests {
			keys[i] = r.physicalKey
		}
		if err := e.engine.BatchDelete(keys); err != nil {
			opErr = err
			e.failBatch(b, "batch_delete", err)
			break
		}
		for _, r := range b.requests {
			r.completeWithRaw(storage.KeyValue{})
		}

	case KindIterSeek:
		// Scans cannot be merged into one engine call; each request runs
		// its own, an error affects only its own future.
		for _, r := range b.requests {
			entries, err := e.engine.Scan(r.scanPrefix)
			if err != nil {
				opErr = err
				r.fail(&EngineError{Op: "scan", Cause: err})
				continue
			}
			r.completeScan(entries)
		}
	}

	e.logger.StateOperation(ctx, b.kind.String(), b.binding.Name, len(b.requests), time.Since(start), opErr)
}

func (e *Executor) failBatch(b *batch, op string, cause error) {
	for _, r := range b.requests {
		r.fail(&EngineError{Op: op, Cause: cause})
	}
}
