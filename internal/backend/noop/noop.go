// Package noop implements the explicit no-op backend of spec invariant
// 4: "If the backend is absent (noop mode), Sender/Receiver are
// skipped entirely." Rather than special-casing a nil backend.Backend
// throughout the pipeline, this package gives "no backend" a concrete,
// always-resolved implementation, used by the `noop` command mode to
// exercise Sender/Receiver/Outputter without a real remote service.
package noop

import (
	"context"
	"time"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

// Backend resolves every Infer call immediately with an empty Record:
// no predicted or discarded labels, just the frame's location.
type Backend struct{}

// New builds a no-op Backend.
func New() *Backend { return &Backend{} }

func (Backend) Infer(ctx context.Context, encoded []byte, frameName string) (backend.PendingResult, error) {
	return pendingResult{frameName: frameName}, nil
}

func (Backend) Close() error { return nil }

type pendingResult struct {
	frameName string
}

func (p pendingResult) Await(ctx context.Context, timeout time.Duration) (*predict.Record, error) {
	return &predict.Record{Location: p.frameName, Outputs: []predict.Output{{}}}, nil
}
