// Package reader implements the input adapters of spec §4.1: an
// iterator that yields frame.Frame values, one concrete variant per
// input descriptor shape (file existence, extension, numeric-only
// string, URL scheme). Grounded on the teacher's jpeg.Source /
// dirsource.Source shape (Name/Next) generalized to the full spec.
package reader

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
)

// Reader iterates a media source, yielding Frames in strictly
// increasing frame_number order (the number itself is assigned by the
// caller via a shared counter, see Counter).
type Reader interface {
	// Next returns the next Frame, or io.EOF-shaped ErrDone when the
	// source is exhausted (never, for infinite sources).
	Next(ctx context.Context) (*frame.Frame, error)
	// FrameCount returns the total frame count if known, -1 if the
	// source is infinite.
	FrameCount() int64
	// FPS returns the source's native frame rate, 0 if not applicable
	// (still images).
	FPS() float64
	// IsInfinite reports whether the source never exhausts (streams,
	// devices).
	IsInfinite() bool
	// Close releases any resource the Reader holds open.
	Close() error
}

// ErrDone signals a Reader is exhausted; Readers return it (wrapped or
// bare) from Next once there are no more frames.
var ErrDone = fmt.Errorf("reader: no more frames")

// Counter assigns strictly monotonic, gapless frame numbers across
// however many concatenated Readers a Directory/StudioManifest chains
// together (spec invariant 2).
type Counter struct {
	next uint64
}

// Next returns the next frame number.
func (c *Counter) Next() uint64 {
	n := c.next
	c.next++
	return n
}

var digitsOnly = regexp.MustCompile(`^[0-9]+$`)

var imageExt = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".gif": true,
}

var videoExt = map[string]bool{
	".mp4": true, ".avi": true, ".mov": true, ".mkv": true, ".webm": true, ".mpg": true, ".mpeg": true,
}

// Options configures reader construction, mirroring the command
// surface of spec §6.
type Options struct {
	Recursive bool
	InputFPS  int
	SkipFrame int
	Counter   *Counter
	Logger    pipelog.Logger
}

// Select performs the descriptor inspection of spec §4.1 and returns
// the Reader variant matching descriptor. An InputOpen error (spec §7)
// is returned when the underlying resource cannot be opened.
func Select(descriptor string, opts Options) (Reader, error) {
	if opts.Counter == nil {
		opts.Counter = &Counter{}
	}
	if opts.Logger == nil {
		opts.Logger = pipelog.Nop()
	}

	if u, err := url.Parse(descriptor); err == nil && u.Scheme != "" && u.Host != "" {
		return newStream(descriptor, opts)
	}
	if digitsOnly.MatchString(descriptor) {
		idx, err := strconv.Atoi(descriptor)
		if err != nil {
			return nil, fmt.Errorf("reader: bad device index %q: %w", descriptor, err)
		}
		return newDevice(idx, opts)
	}
	info, err := os.Stat(descriptor)
	if err != nil {
		return nil, fmt.Errorf("reader: cannot open %q: %w", descriptor, err)
	}
	if info.IsDir() {
		return newDirectory(descriptor, opts)
	}
	ext := strings.ToLower(filepath.Ext(descriptor))
	switch {
	case ext == ".json":
		return newStudioManifest(descriptor, opts)
	case imageExt[ext]:
		return newImage(descriptor, opts)
	case videoExt[ext]:
		return newVideoFile(descriptor, opts)
	default:
		return nil, fmt.Errorf("reader: unrecognized descriptor %q", descriptor)
	}
}
