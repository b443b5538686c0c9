package queue

import (
	"context"
	"testing"
	"time"
)

func TestBoundedPutGet(t *testing.T) {
	q := NewBounded[int](2)
	ctx := context.Background()

	if err := q.Put(ctx, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := q.Put(ctx, 2); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := q.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	v, ok := q.Get(ctx)
	if !ok || v != 1 {
		t.Fatalf("Get() = %d, %v, want 1, true", v, ok)
	}
}

func TestBoundedPutBlocksWhenFull(t *testing.T) {
	q := NewBounded[int](1)
	ctx := context.Background()
	if err := q.Put(ctx, 1); err != nil {
		t.Fatalf("Put: %v", err)
	}

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := q.Put(ctx2, 2); err == nil {
		t.Fatal("Put on a full bounded queue should block until ctx cancellation")
	}
}

func TestBoundedCloseDrains(t *testing.T) {
	q := NewBounded[int](2)
	ctx := context.Background()
	_ = q.Put(ctx, 1)
	q.Close()

	v, ok := q.Get(ctx)
	if !ok || v != 1 {
		t.Fatalf("Get() after Close should still drain resident items, got %d, %v", v, ok)
	}
	if _, ok := q.Get(ctx); ok {
		t.Fatal("Get() should report !ok once a closed queue is drained")
	}
}

func TestDropOldestClearsBeforeEnqueueing(t *testing.T) {
	q := NewDropOldest[int]("test-queue")
	ctx := context.Background()

	for _, v := range []int{1, 2, 3} {
		if err := q.Put(ctx, v); err != nil {
			t.Fatalf("Put(%d): %v", v, err)
		}
	}
	if got := q.Len(); got != 1 {
		t.Fatalf("Len() = %d, want 1: the queue should only ever hold the newest item", got)
	}

	got, ok := q.Get(ctx)
	if !ok || got != 3 {
		t.Fatalf("Get() = %d, %v, want only the most recently put item 3, true", got, ok)
	}

	q.Close()
	if _, ok := q.Get(context.Background()); ok {
		t.Fatal("Get() on a closed, drained queue should report !ok")
	}
}

func TestDropOldestGetBlocksUntilPut(t *testing.T) {
	q := NewDropOldest[int]("test-queue")
	done := make(chan int, 1)
	go func() {
		v, ok := q.Get(context.Background())
		if !ok {
			done <- -1
			return
		}
		done <- v
	}()

	time.Sleep(10 * time.Millisecond)
	_ = q.Put(context.Background(), 42)

	select {
	case v := <-done:
		if v != 42 {
			t.Fatalf("Get() = %d, want 42", v)
		}
	case <-time.After(time.Second):
		t.Fatal("Get() never returned after a Put")
	}
}

func TestDropOldestCloseUnblocksGet(t *testing.T) {
	q := NewDropOldest[int]("test-queue")
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Get(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("Get() on a closed, empty queue should report !ok")
		}
	case <-time.After(time.Second):
		t.Fatal("Close() never unblocked a pending Get()")
	}
}
