package stage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
)

// alwaysFailBackend simulates an unrecoverable backend outage: every
// Infer call fails, so Sender's retry policy always exhausts.
type alwaysFailBackend struct{ calls int }

func (b *alwaysFailBackend) Infer(ctx context.Context, encoded []byte, name string) (backend.PendingResult, error) {
	b.calls++
	return nil, errors.New("connection refused")
}
func (b *alwaysFailBackend) Close() error { return nil }

func TestSenderPropagatesErrorAfterRetriesExhausted(t *testing.T) {
	bk := &alwaysFailBackend{}
	in := queue.NewBounded[*frame.Frame](1)
	out := queue.NewBounded[*frame.Frame](1)

	var gotErr error
	handler := func(err error) { gotErr = err }

	pool := NewSender(SenderConfig{Workers: 1, Interval: time.Millisecond, Retries: 2}, bk, in, out, handler, pipelog.Nop())

	ctx := context.Background()
	_ = in.Put(ctx, frame.New("f1", "f1.jpg", 1))
	in.Close()

	pool.Run(ctx)
	pool.Wait()

	if gotErr == nil {
		t.Fatal("onError should have been invoked once retries were exhausted")
	}
	if bk.calls == 0 {
		t.Fatal("backend.Infer should have been called at least once")
	}

	getCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if _, ok := out.Get(getCtx); ok {
		t.Fatal("no frame should reach the output queue when submission ultimately fails")
	}
}

func TestSenderNoopBackendPassesFrameThrough(t *testing.T) {
	in := queue.NewBounded[*frame.Frame](1)
	out := queue.NewBounded[*frame.Frame](1)
	handler := func(err error) { t.Fatalf("unexpected error: %v", err) }

	pool := NewSender(SenderConfig{Workers: 1}, nil, in, out, handler, pipelog.Nop())

	ctx := context.Background()
	f := frame.New("f1", "f1.jpg", 1)
	_ = in.Put(ctx, f)
	in.Close()

	pool.Run(ctx)
	pool.Wait()

	getCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	got, ok := out.Get(getCtx)
	if !ok || got != f {
		t.Fatalf("Get() = %v, %v, want the same frame passed through untouched", got, ok)
	}
}
