package syncq

import "testing"

func TestContext_NotExhaustedBeforeEOF(t *testing.T) {
	c := NewContext[int](4)
	if c.Exhausted() {
		t.Fatal("expected not exhausted before SetEOF")
	}
}

func TestContext_NotExhaustedWithOutstandingCommon(t *testing.T) {
	c := NewContext[int](4)
	c.Common.Put(1)
	c.SetEOF()
	if c.Exhausted() {
		t.Fatal("expected not exhausted while common queue has outstanding items")
	}
	c.Common.Get()
	c.Common.Done()
	if !c.Exhausted() {
		t.Fatal("expected exhausted once common queue is drained and acknowledged")
	}
}

func TestContext_NotExhaustedWithOutstandingWriterQueue(t *testing.T) {
	c := NewContext[int](4)
	c.SetEOF()
	writerQueue := New[int](4)
	writerQueue.Put(1)
	if c.Exhausted(writerQueue) {
		t.Fatal("expected not exhausted while a named writer queue has outstanding items")
	}
	writerQueue.Get()
	writerQueue.Done()
	if !c.Exhausted(writerQueue) {
		t.Fatal("expected exhausted once the writer queue is drained and acknowledged")
	}
}
