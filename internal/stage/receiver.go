package stage

import (
	"context"
	"time"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
)

// ReceiverConfig controls the threshold and format policy of spec
// §4.4 and §4.4.1 (Open Question 2): partitioning is always applied
// before any studio conversion.
type ReceiverConfig struct {
	Timeout       time.Duration
	UserThreshold *float64
	StudioFormat  bool
}

// NewReceiver builds the Receiver pool (spec §4.4): a single worker
// that Awaits each Frame's PendingResult, applies the threshold
// policy, and optionally converts to studio shape. Kept single-worker
// because Await itself already multiplexes over however many
// in-flight requests the backend holds; adding receiver workers would
// only reorder completions, which the Outputter's reassembly step
// would have to undo anyway (spec §5).
func NewReceiver(cfg ReceiverConfig, in, out queue.Queue[*frame.Frame], onError ErrorHandler, log pipelog.Logger) *Pool[*frame.Frame, *frame.Frame] {
	if log == nil {
		log = pipelog.Nop()
	}
	fn := func(ctx context.Context, f *frame.Frame) (*frame.Frame, bool, error) {
		if f.Dropped || f.Pending == nil {
			// either already dropped upstream, or noop backend: nothing to
			// await, frame passes through unlabeled.
			return f, true, nil
		}
		record, err := f.Pending.Await(ctx, cfg.Timeout)
		if err != nil {
			log.Warn("inference await failed, dropping", pipelog.String("frame", f.Name), pipelog.Error(err))
			f.Dropped = true
			f.Pending = nil
			return f, true, nil
		}
		record.Partition(cfg.UserThreshold)
		f.Predictions = record
		if cfg.StudioFormat {
			studio, err := record.ToStudio()
			if err != nil {
				log.Warn("studio conversion failed, dropping", pipelog.String("frame", f.Name), pipelog.Error(err))
				f.Dropped = true
				f.Pending = nil
				return f, true, nil
			}
			f.Studio = &studio
		}
		f.Pending = nil
		return f, true, nil
	}
	return New("receiver", 1, in, out, fn, onError, log)
}
