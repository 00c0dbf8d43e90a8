package syncq

import (
	"testing"
	"time"
)

func TestQueue_PutGetOrder(t *testing.T) {
	q := New[int](4)
	q.Put(1)
	q.Put(2)
	q.Put(3)
	if got := q.Get(); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
	if got := q.Get(); got != 2 {
		t.Fatalf("got %d, want 2", got)
	}
}

func TestQueue_OutstandingTracksPutAndDone(t *testing.T) {
	q := New[string](4)
	q.Put("a")
	q.Put("b")
	if q.Outstanding() != 2 {
		t.Fatalf("outstanding = %d, want 2", q.Outstanding())
	}
	q.Get()
	if q.Outstanding() != 2 {
		t.Fatalf("dequeue alone must not change outstanding, got %d", q.Outstanding())
	}
	q.Done()
	if q.Outstanding() != 1 {
		t.Fatalf("outstanding = %d, want 1", q.Outstanding())
	}
}

func TestQueue_TryGetTimesOut(t *testing.T) {
	q := New[int](1)
	start := time.Now()
	_, ok := q.TryGet(20 * time.Millisecond)
	if ok {
		t.Fatal("expected TryGet to time out on empty queue")
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("TryGet returned too early: %v", elapsed)
	}
}

func TestQueue_TryGetReturnsAvailableItem(t *testing.T) {
	q := New[int](1)
	q.Put(9)
	got, ok := q.TryGet(time.Second)
	if !ok || got != 9 {
		t.Fatalf("got (%v, %v), want (9, true)", got, ok)
	}
}

func TestQueue_PutBlocksAtCapacity(t *testing.T) {
	q := New[int](1)
	q.Put(1)
	done := make(chan struct{})
	go func() {
		q.Put(2)
		close(done)
	}()
	select {
	case <-done:
		t.Fatal("Put should have blocked at capacity")
	case <-time.After(20 * time.Millisecond):
	}
	q.Get()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Put did not unblock after a Get freed capacity")
	}
}

func TestQueue_LenAndCap(t *testing.T) {
	q := New[int](3)
	if q.Cap() != 3 {
		t.Fatalf("Cap = %d, want 3", q.Cap())
	}
	q.Put(1)
	q.Put(2)
	if q.Len() != 2 {
		t.Fatalf("Len = %d, want 2", q.Len())
	}
}
