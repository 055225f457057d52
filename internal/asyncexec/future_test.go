package asyncexec

import (
	"errors"
	"testing"
)

func TestFutureSettlesOnce(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)

	if err := f.Complete("v"); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if err := f.Complete("again"); !errors.Is(err, ErrFutureSettled) {
		t.Fatalf("second Complete err = %v, want ErrFutureSettled", err)
	}
	if err := f.Fail(errors.New("late")); !errors.Is(err, ErrFutureSettled) {
		t.Fatalf("Fail after Complete err = %v, want ErrFutureSettled", err)
	}

	value, err := f.Result()
	if err != nil || value != "v" {
		t.Fatalf("Result = (%v, %v), want (v, nil)", value, err)
	}
	if f.State() != Completed {
		t.Fatalf("State = %v, want Completed", f.State())
	}
}

func TestFutureContinuationDeliveredViaMailbox(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)

	var calls int
	var gotValue interface{}
	if err := f.OnComplete(func(value interface{}, err error) {
		calls++
		gotValue = value
	}); err != nil {
		t.Fatal(err)
	}

	if err := f.Complete(42); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatal("continuation ran inline on the completing goroutine")
	}

	m.RunPending()
	if calls != 1 {
		t.Fatalf("continuation ran %d times, want 1", calls)
	}
	if gotValue != 42 {
		t.Fatalf("continuation value = %v, want 42", gotValue)
	}
}

func TestFutureLateContinuationNotInline(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)
	if err := f.Fail(errors.New("boom")); err != nil {
		t.Fatal(err)
	}

	var calls int
	var gotErr error
	if err := f.OnComplete(func(value interface{}, err error) {
		calls++
		gotErr = err
	}); err != nil {
		t.Fatal(err)
	}
	if calls != 0 {
		t.Fatal("late continuation ran inline")
	}

	m.RunPending()
	m.RunPending()
	if calls != 1 {
		t.Fatalf("late continuation ran %d times, want 1", calls)
	}
	if gotErr == nil || gotErr.Error() != "boom" {
		t.Fatalf("continuation err = %v, want boom", gotErr)
	}
}

func TestFutureContinuationsRunInAttachmentOrder(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)

	var order []int
	for i := 0; i < 4; i++ {
		i := i
		if err := f.OnComplete(func(interface{}, error) { order = append(order, i) }); err != nil {
			t.Fatal(err)
		}
	}
	f.Complete(nil)
	m.RunPending()

	for i, v := range order {
		if v != i {
			t.Fatalf("continuations ran out of order: %v", order)
		}
	}
	if len(order) != 4 {
		t.Fatalf("ran %d continuations, want 4", len(order))
	}
}

func TestFutureOnCompleteAfterMailboxClose(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)
	m.Close()

	err := f.OnComplete(func(interface{}, error) {
		t.Fatal("continuation ran after task close")
	})
	var closedErr *TaskClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("OnComplete after close err = %v, want TaskClosedError", err)
	}
}

func TestFutureDoneChannel(t *testing.T) {
	m := NewMailbox()
	f := NewFuture(m)

	select {
	case <-f.Done():
		t.Fatal("Done closed before settlement")
	default:
	}

	f.Complete("x")

	select {
	case <-f.Done():
	default:
		t.Fatal("Done not closed after settlement")
	}
}
