package reader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// imageReader yields exactly one Frame for a single still image file.
type imageReader struct {
	path string
	ctr  *Counter
	done bool
}

func newImage(path string, opts Options) (Reader, error) {
	return &imageReader{path: path, ctr: opts.Counter}, nil
}

func (r *imageReader) Next(ctx context.Context) (*frame.Frame, error) {
	if r.done {
		return nil, ErrDone
	}
	r.done = true
	data, err := os.ReadFile(r.path)
	if err != nil {
		return nil, fmt.Errorf("reader: image open %q: %w", r.path, err)
	}
	buf, err := rawimage.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("reader: image decode %q: %w", r.path, err)
	}
	n := r.ctr.Next()
	f := frame.New(filepath.Base(r.path), r.path, n)
	f.Image = buf
	return f, nil
}

func (r *imageReader) FrameCount() int64 { return 1 }
func (r *imageReader) FPS() float64      { return 0 }
func (r *imageReader) IsInfinite() bool  { return false }
func (r *imageReader) Close() error      { return nil }
