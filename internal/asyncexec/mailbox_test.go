package asyncexec

import (
	"errors"
	"testing"
	"time"
)

func TestMailboxRunsTasksInOrder(t *testing.T) {
	m := NewMailbox()
	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := m.Execute(func() { got = append(got, i) }); err != nil {
			t.Fatalf("Execute: %v", err)
		}
	}

	if len(got) != 0 {
		t.Fatal("tasks ran before a mailbox pass")
	}
	if n := m.RunPending(); n != 5 {
		t.Fatalf("RunPending ran %d tasks, want 5", n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("tasks ran out of order: %v", got)
		}
	}
}

func TestMailboxExecuteAfterClose(t *testing.T) {
	m := NewMailbox()
	m.Close()

	err := m.Execute(func() { t.Fatal("task ran on closed mailbox") })
	var closedErr *TaskClosedError
	if !errors.As(err, &closedErr) {
		t.Fatalf("Execute on closed mailbox err = %v, want TaskClosedError", err)
	}
}

func TestMailboxTaskCanEnqueueFollowup(t *testing.T) {
	m := NewMailbox()
	var order []string
	if err := m.Execute(func() {
		order = append(order, "first")
		m.Execute(func() { order = append(order, "followup") })
	}); err != nil {
		t.Fatal(err)
	}
	m.Execute(func() { order = append(order, "second") })

	// The first pass picked up the two original tasks; the followup lands
	// in a later pass.
	m.RunPending()
	m.RunPending()

	want := []string{"first", "second", "followup"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestMailboxRunExitsOnClose(t *testing.T) {
	m := NewMailbox()
	ran := make(chan struct{})
	done := make(chan struct{})

	go func() {
		m.Run()
		close(done)
	}()

	if err := m.Execute(func() { close(ran) }); err != nil {
		t.Fatal(err)
	}
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("Run loop never executed the task")
	}

	m.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}
