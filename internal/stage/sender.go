package stage

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
)

// SenderConfig fixes the retry policy of spec §4.3 / SPEC_FULL.md
// Open Question 1: a constant 200ms backoff capped at 5 attempts, the
// teacher's simplest constant-backoff variant generalized to every
// backend rather than just cloud auth.
type SenderConfig struct {
	Workers  int
	Interval time.Duration // default 200ms
	Retries  uint64        // default 5
}

// NewSender builds the Sender pool (spec §4.3): each worker submits a
// Frame's encoded bytes to the shared Backend, retries transient
// failures with a constant backoff, and attaches the resulting
// PendingResult to the Frame for the Receiver to Await later. When bk
// is nil (noop mode, spec invariant 4) the Frame passes through
// untouched.
func NewSender(cfg SenderConfig, bk backend.Backend, in, out queue.Queue[*frame.Frame], onError ErrorHandler, log pipelog.Logger) *Pool[*frame.Frame, *frame.Frame] {
	if cfg.Interval <= 0 {
		cfg.Interval = 200 * time.Millisecond
	}
	if cfg.Retries == 0 {
		cfg.Retries = 5
	}
	if log == nil {
		log = pipelog.Nop()
	}
	fn := func(ctx context.Context, f *frame.Frame) (*frame.Frame, bool, error) {
		if f.Dropped || bk == nil {
			return f, true, nil
		}
		policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(cfg.Interval), cfg.Retries), ctx)
		var pending backend.PendingResult
		err := backoff.Retry(func() error {
			p, err := bk.Infer(ctx, f.Encoded, f.Name)
			if err != nil {
				return err
			}
			pending = p
			return nil
		}, policy)
		if err != nil {
			return nil, false, fmt.Errorf("sender: submit frame %q: %w", f.Name, err)
		}
		f.Pending = pending
		return f, true, nil
	}
	return New("sender", cfg.Workers, in, out, fn, onError, log)
}
