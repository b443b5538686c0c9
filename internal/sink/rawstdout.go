package sink

import (
	"bufio"
	"context"
	"io"

	"github.com/warpcomdev/inferpipe/internal/frame"
)

// rawStdout writes raw pixel bytes for piping into an external encoder
// (spec §4.5.1); if a Frame carries no image, it falls back to writing
// the predictions as a single JSON line.
type rawStdout struct {
	w *bufio.Writer
}

func newRawStdout(w io.Writer) *rawStdout {
	return &rawStdout{w: bufio.NewWriter(w)}
}

func (s *rawStdout) Write(ctx context.Context, f *frame.Frame) error {
	buf := f.Output
	if buf == nil {
		buf = f.Image
	}
	if buf != nil {
		if _, err := s.w.Write(buf.Pix[:buf.Size()]); err != nil {
			return err
		}
		return s.w.Flush()
	}
	data, err := marshalRecord(f)
	if err != nil {
		return err
	}
	if _, err := s.w.Write(data); err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("\n")); err != nil {
		return err
	}
	return s.w.Flush()
}

func (s *rawStdout) Close() error { return s.w.Flush() }
