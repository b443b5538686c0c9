// Package frame holds Frame, the single value that flows through every
// queue of the pipeline (spec §3). Exactly one stage mutates a Frame at
// a time; handoff between stages is the queue Put/Get itself.
package frame

import (
	"github.com/warpcomdev/inferpipe/internal/backend"
	"github.com/warpcomdev/inferpipe/internal/predict"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// Frame carries one unit of work (one still image, or one video frame)
// through Reader → Encoder → Sender → Receiver → Outputter.
type Frame struct {
	// Name is a unique display name, derived from source + sequence
	// index + a recognition tag (spec §3).
	Name string
	// Filename is the originating resource path or URL.
	Filename string
	// Image is the decoded pixel buffer. Retained through the whole
	// pipeline because Draw/Blur post-processing needs the original
	// pixels, not just the encoded bytes (spec §4.2).
	Image *rawimage.Buffer
	// VideoFrameIndex is the position within a video source, if any.
	VideoFrameIndex int
	// Number is the monotonic, gapless frame number assigned by the
	// Reader; unique per process run (spec invariant 2).
	Number uint64
	// Encoded is the JPEG-encoded payload, populated by the Encoder.
	Encoded []byte
	// Pending is the backend handle, set by Sender, resolved by
	// Receiver (spec invariant 3). Nil when the backend is absent
	// (noop mode, spec invariant 4) or once Receiver has consumed it.
	Pending backend.PendingResult
	// Predictions is the structured annotation record, populated by
	// Receiver after threshold filtering, in the native shape.
	Predictions *predict.Record
	// Studio holds the studio-shaped conversion of Predictions, set only
	// when --studio_format was requested (spec §4.4.1). JsonSink emits
	// whichever of Predictions/Studio is populated.
	Studio *predict.Studio
	// Output is the optional pixel buffer modified by the visual
	// post-processor (Draw/Blur), populated by Outputter.
	Output *rawimage.Buffer
	// Dropped marks a frame that failed a per-frame step (decode,
	// inference, timeout) and carries no payload past that point. It
	// still flows all the way to Outputter so frame_number order is
	// preserved with an explicit gap instead of a stall (spec §7).
	Dropped bool
}

// New creates a Frame for the given Reader-assigned number.
func New(name, filename string, number uint64) *Frame {
	return &Frame{
		Name:     name,
		Filename: filename,
		Number:   number,
	}
}
