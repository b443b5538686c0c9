package sink

import (
	"context"
	"os"
	"path/filepath"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// directorySink writes <name>.jpg (and, when predictions exist,
// <name>.json) per frame into an existing directory (spec §4.5.1).
type directorySink struct {
	root string
}

func newDirectory(root string) *directorySink {
	return &directorySink{root: root}
}

func (s *directorySink) Write(ctx context.Context, f *frame.Frame) error {
	buf := f.Output
	if buf == nil {
		buf = f.Image
	}
	data, err := rawimage.EncodeJPEG(buf, 90)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(s.root, f.Name+".jpg"), data, 0o644); err != nil {
		return err
	}
	if f.Predictions == nil && f.Studio == nil {
		return nil
	}
	js, err := marshalRecord(f)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(s.root, f.Name+".json"), js, 0o644)
}

func (s *directorySink) Close() error { return nil }
