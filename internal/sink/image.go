package sink

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// imageSink writes one JPEG file per frame, substituting a printf-style
// counter in the path if present (spec §4.5.1).
type imageSink struct {
	pattern string
}

func newImage(pattern string) *imageSink {
	return &imageSink{pattern: pattern}
}

func (s *imageSink) Write(ctx context.Context, f *frame.Frame) error {
	path := s.pattern
	if strings.Contains(path, "%") {
		path = fmt.Sprintf(path, f.VideoFrameIndex)
	}
	buf := f.Output
	if buf == nil {
		buf = f.Image
	}
	data, err := rawimage.EncodeJPEG(buf, 90)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *imageSink) Close() error { return nil }
