package stage

import (
	"context"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/queue"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// NewEncoder builds the Encoder pool (spec §4.2): each worker
// JPEG-encodes a Frame's decoded pixels at the configured quality,
// independent of every other frame, so this is the stage most safely
// run with many workers.
func NewEncoder(workers, quality int, in, out queue.Queue[*frame.Frame], onError ErrorHandler, log pipelog.Logger) *Pool[*frame.Frame, *frame.Frame] {
	if log == nil {
		log = pipelog.Nop()
	}
	fn := func(ctx context.Context, f *frame.Frame) (*frame.Frame, bool, error) {
		encoded, err := rawimage.EncodeJPEG(f.Image, quality)
		if err != nil {
			log.Warn("frame decode/encode failed, dropping", pipelog.String("frame", f.Name), pipelog.Error(err))
			f.Dropped = true
			return f, true, nil
		}
		f.Encoded = encoded
		return f, true, nil
	}
	return New("encoder", workers, in, out, fn, onError, log)
}
