// Package backend defines the common contract every inference backend
// satisfies (spec §4.6): Sender and Receiver are backend-agnostic, only
// the constructor selected by configuration knows which concrete
// variant (cloud HTTP, AMQP RPC, or file-backed replay) to build.
package backend

import (
	"context"
	"time"

	"github.com/warpcomdev/inferpipe/internal/predict"
)

// Backend turns an encoded image into a PendingResult. Implementations
// must be safe for concurrent Infer calls: several Sender workers share
// one Backend value (spec §5, "Shared resource policy").
type Backend interface {
	Infer(ctx context.Context, encoded []byte, frameName string) (PendingResult, error)
	Close() error
}

// PendingResult is a one-shot future resolved by Await. Every backend's
// PendingResult satisfies this same contract so no backend-specific
// type ever crosses a pool boundary (spec §9).
type PendingResult interface {
	Await(ctx context.Context, timeout time.Duration) (*predict.Record, error)
}

// TimeoutError is returned by Await when the per-frame deadline expires
// without a resolved prediction (spec §4.4, §7: InferenceTimeout).
type TimeoutError struct {
	FrameName string
}

func (e *TimeoutError) Error() string {
	return "inference timeout for frame " + e.FrameName
}

// InferError wraps a backend-reported failure payload (spec §7:
// InferenceError), carrying the backend's own error code for logging.
type InferError struct {
	FrameName string
	Code      string
	Err       error
}

func (e *InferError) Error() string {
	if e.Err != nil {
		return "inference error [" + e.Code + "] for frame " + e.FrameName + ": " + e.Err.Error()
	}
	return "inference error [" + e.Code + "] for frame " + e.FrameName
}

func (e *InferError) Unwrap() error { return e.Err }
