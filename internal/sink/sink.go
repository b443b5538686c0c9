// Package sink implements the Outputter's output adapters (spec
// §4.5.1): one Sink variant per output descriptor shape, mirroring the
// dispatch pattern of internal/reader.Select.
package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
)

// Sink consumes Frames in order, as the Outputter produces them.
// Implementations are single-writer: only the Outputter ever calls
// Write (spec §5, "each sink is single-writer from the Outputter
// only").
type Sink interface {
	Write(ctx context.Context, f *frame.Frame) error
	Close() error
}

// Multi fans a Frame out to every configured sink, continuing past a
// failing sink (spec §7: OutputWrite -> "log, continue with remaining
// sinks").
type Multi struct {
	sinks []Sink
	log   pipelog.Logger
}

// NewMulti wraps a list of Sinks, none of which may be nil.
func NewMulti(log pipelog.Logger, sinks ...Sink) *Multi {
	if log == nil {
		log = pipelog.Nop()
	}
	return &Multi{sinks: sinks, log: log}
}

func (m *Multi) Write(ctx context.Context, f *frame.Frame) error {
	for _, s := range m.sinks {
		if err := s.Write(ctx, f); err != nil {
			m.log.Error("sink write failed", pipelog.Error(err))
		}
	}
	return nil
}

func (m *Multi) Close() error {
	var firstErr error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Options configures sink construction, mirroring spec §6's output
// flags.
type Options struct {
	OutputFPS  int
	Fourcc     string // overrides the extension-derived default, if set
	Counter    bool   // descriptor carries a printf-style frame counter
	Fullscreen bool
	Addr       string      // DisplaySink listen address, default ":8087"
	Cancel     func()      // invoked when the DisplaySink's "q" keypress arrives
	Logger     pipelog.Logger
}

var imageExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".bmp": true}
var videoExt = map[string]string{".mp4": "mp4v", ".avi": "XVID", ".mkv": "X264", ".mov": "mp4v"}

// Select performs the descriptor inspection of spec §4.5.1.
func Select(descriptor string, opts Options) (Sink, error) {
	if opts.Logger == nil {
		opts.Logger = pipelog.Nop()
	}
	switch descriptor {
	case "stdout":
		return newRawStdout(os.Stdout), nil
	case "window":
		return newDisplay(opts)
	}
	if info, err := os.Stat(descriptor); err == nil && info.IsDir() {
		return newDirectory(descriptor), nil
	}
	ext := strings.ToLower(filepath.Ext(descriptor))
	switch {
	case ext == ".json":
		return newJSON(descriptor, strings.Contains(descriptor, "%")), nil
	case imageExt[ext]:
		return newImage(descriptor), nil
	case videoExt[ext] != "":
		fourcc := videoExt[ext]
		if opts.Fourcc != "" {
			fourcc = opts.Fourcc
		}
		return newVideo(descriptor, fourcc, opts.OutputFPS)
	default:
		return nil, fmt.Errorf("sink: unrecognized descriptor %q", descriptor)
	}
}

func marshalRecord(f *frame.Frame) ([]byte, error) {
	if f.Studio != nil {
		return json.Marshal(f.Studio)
	}
	return json.Marshal(f.Predictions)
}
