package monitoring

import (
	"sync"
	"testing"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewExecutorMetrics()

	for i := 0; i < 10; i++ {
		m.RequestSubmitted()
	}
	for i := 0; i < 7; i++ {
		m.RequestCompleted()
	}
	m.RequestFailed()
	m.BatchDispatched(5, "size_limit")
	m.BatchDispatched(3, "timeout")
	m.BatchDispatched(4, "timeout")

	snap := m.Snapshot()
	if snap.RequestsSubmitted != 10 {
		t.Errorf("RequestsSubmitted = %d, want 10", snap.RequestsSubmitted)
	}
	if snap.RequestsCompleted != 7 {
		t.Errorf("RequestsCompleted = %d, want 7", snap.RequestsCompleted)
	}
	if snap.RequestsFailed != 1 {
		t.Errorf("RequestsFailed = %d, want 1", snap.RequestsFailed)
	}
	if snap.QueueDepth != 2 {
		t.Errorf("QueueDepth = %d, want 2", snap.QueueDepth)
	}
	if snap.BatchesDispatched != 3 {
		t.Errorf("BatchesDispatched = %d, want 3", snap.BatchesDispatched)
	}
	if snap.EntriesDispatched != 12 {
		t.Errorf("EntriesDispatched = %d, want 12", snap.EntriesDispatched)
	}
	if snap.AverageBatchSize != 4 {
		t.Errorf("AverageBatchSize = %f, want 4", snap.AverageBatchSize)
	}
	if snap.FlushReasons["timeout"] != 2 || snap.FlushReasons["size_limit"] != 1 {
		t.Errorf("FlushReasons = %v", snap.FlushReasons)
	}
	if snap.LastDispatch.IsZero() {
		t.Error("LastDispatch not recorded")
	}
}

func TestMetricsBarrierCounter(t *testing.T) {
	m := NewExecutorMetrics()
	m.BarrierRegistered()
	m.BarrierRegistered()
	m.BarrierCompleted()

	if got := m.Snapshot().BarriersActive; got != 1 {
		t.Fatalf("BarriersActive = %d, want 1", got)
	}
}

func TestMetricsConcurrentUpdates(t *testing.T) {
	m := NewExecutorMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				m.RequestSubmitted()
				m.BatchDispatched(1, "size_limit")
				m.RequestCompleted()
			}
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.RequestsSubmitted != 8000 || snap.RequestsCompleted != 8000 {
		t.Fatalf("submitted/completed = %d/%d, want 8000/8000", snap.RequestsSubmitted, snap.RequestsCompleted)
	}
	if snap.QueueDepth != 0 {
		t.Fatalf("QueueDepth = %d, want 0", snap.QueueDepth)
	}
	if snap.FlushReasons["size_limit"] != 8000 {
		t.Fatalf("FlushReasons[size_limit] = %d, want 8000", snap.FlushReasons["size_limit"])
	}
}
