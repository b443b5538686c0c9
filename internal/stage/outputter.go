package stage

import (
	"context"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/postprocess"
	"github.com/warpcomdev/inferpipe/internal/queue"
	"github.com/warpcomdev/inferpipe/internal/sink"
)

// PostProcessor applies Draw or Blur (or neither, in infer/noop
// command modes) to a Frame's original pixels (spec §4.5.2).
type PostProcessor func(f *frame.Frame)

// NewDrawProcessor builds a PostProcessor that outlines/labels bboxes.
func NewDrawProcessor(opts postprocess.DrawOptions) PostProcessor {
	return func(f *frame.Frame) {
		if f.Image == nil {
			return
		}
		f.Output = postprocess.Draw(f.Image, f.Predictions, opts)
	}
}

// NewBlurProcessor builds a PostProcessor that obscures bbox regions.
func NewBlurProcessor(opts postprocess.BlurOptions) PostProcessor {
	return func(f *frame.Frame) {
		if f.Image == nil {
			return
		}
		f.Output = postprocess.Blur(f.Image, f.Predictions, opts)
	}
}

// Outputter is the single-worker ordered-reassembly stage (spec
// §4.5): it reads out-of-order Frames from in, buffers early arrivals
// in framesDone until the expected frame_number appears, applies an
// optional PostProcessor, and writes every Frame to out in strict
// order (spec invariant 2 / P1).
type Outputter struct {
	in         queue.Queue[*frame.Frame]
	out        sink.Sink
	process    PostProcessor
	log        pipelog.Logger
	expected   uint64
	framesDone map[uint64]*frame.Frame
	done       chan struct{}
}

// NewOutputter builds an Outputter. process may be nil (infer/noop
// modes skip visual post-processing entirely).
func NewOutputter(in queue.Queue[*frame.Frame], out sink.Sink, process PostProcessor, log pipelog.Logger) *Outputter {
	if log == nil {
		log = pipelog.Nop()
	}
	return &Outputter{
		in:         in,
		out:        out,
		process:    process,
		log:        log,
		framesDone: map[uint64]*frame.Frame{},
		done:       make(chan struct{}),
	}
}

// Run drains in until closed, emitting Frames to out in frame_number
// order. It returns once the input is exhausted.
func (o *Outputter) Run(ctx context.Context) {
	defer close(o.done)
	for {
		f, ok := o.next(ctx)
		if !ok {
			return
		}
		if f.Dropped {
			// leaves a gap in frame_number order, as spec §7 requires,
			// without stalling the re-order buffer waiting for it.
			continue
		}
		if o.process != nil {
			o.process(f)
		}
		if err := o.out.Write(ctx, f); err != nil {
			o.log.Error("sink write failed", pipelog.Error(err))
		}
	}
}

// next implements the re-order buffer of spec §4.5: "if the expected
// frame is already in framesDone, take it; else pop from the input
// queue and, if its number is not the expected one, buffer it and
// continue."
func (o *Outputter) next(ctx context.Context) (*frame.Frame, bool) {
	for {
		if f, found := o.framesDone[o.expected]; found {
			delete(o.framesDone, o.expected)
			o.expected++
			return f, true
		}
		f, ok := o.in.Get(ctx)
		if !ok {
			return nil, false
		}
		if f.Number == o.expected {
			o.expected++
			return f, true
		}
		o.framesDone[f.Number] = f
	}
}

// Wait blocks until Run has returned and closes the sink.
func (o *Outputter) Wait() {
	<-o.done
	if err := o.out.Close(); err != nil {
		o.log.Error("sink close failed", pipelog.Error(err))
	}
}
