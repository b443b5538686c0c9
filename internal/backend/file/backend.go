// Package file implements the file-backed (offline) backend of spec
// §4.6: predictions are loaded once at construction from a pre-recorded
// studio or native JSON document, indexed by location, and every Infer
// call resolves instantly from that index. Used for replaying a prior
// run and for draw/blur over stored predictions.
package file

import (
	"context"
	"fmt"
	"time"

	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

// Backend is the offline replay backend.
type Backend struct {
	index map[string]*predict.Record
}

// New indexes the given location -> Record map, typically built by
// reader.FromStudioFile from the --from_file path (spec §6).
func New(index map[string]*predict.Record) *Backend {
	return &Backend{index: index}
}

func (b *Backend) Infer(ctx context.Context, encoded []byte, frameName string) (backend.PendingResult, error) {
	record, found := b.index[frameName]
	if !found {
		return nil, &backend.InferError{FrameName: frameName, Code: "not_recorded", Err: fmt.Errorf("no recorded prediction for %q", frameName)}
	}
	return pendingResult{record: record}, nil
}

func (b *Backend) Close() error { return nil }

type pendingResult struct {
	record *predict.Record
}

// Await returns immediately; the prediction was already loaded (spec
// §4.6: "infer returns a PendingResult already carrying the answer;
// await returns immediately").
func (p pendingResult) Await(ctx context.Context, timeout time.Duration) (*predict.Record, error) {
	return p.record, nil
}
