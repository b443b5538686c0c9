package reader

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// watchedDirectoryReader is the hot-folder ingestion mode supplementing
// the spec's static Directory reader (spec §3.9 of SPEC_FULL.md):
// instead of listing once, it watches root for new image files and
// yields a Frame as each one lands, exactly the pattern the teacher's
// dirsource.Watcher uses for the latest-camera-snapshot folder,
// generalized from "always the newest file" to "every new file, in
// arrival order".
type watchedDirectoryReader struct {
	root    string
	watcher *fsnotify.Watcher
	pending chan string
	ctr     *Counter
	log     pipelog.Logger
}

// NewWatchedDirectory builds the hot-folder Reader variant. Unlike
// Select's static dispatch table, this variant is opted into
// explicitly by the caller (it would otherwise be indistinguishable
// from a plain Directory descriptor), typically via a command-line
// flag such as --watch.
func NewWatchedDirectory(root string, opts Options) (Reader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(root); err != nil {
		w.Close()
		return nil, err
	}
	r := &watchedDirectoryReader{
		root:    root,
		watcher: w,
		pending: make(chan string, 64),
		ctr:     opts.Counter,
		log:     opts.Logger,
	}
	go r.loop()
	return r, nil
}

func (r *watchedDirectoryReader) loop() {
	for {
		select {
		case ev, ok := <-r.watcher.Events:
			if !ok {
				close(r.pending)
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			ext := strings.ToLower(filepath.Ext(ev.Name))
			if !imageExt[ext] {
				continue
			}
			select {
			case r.pending <- ev.Name:
			default:
				r.log.Warn("watched directory backlog full, dropping event", pipelog.String("path", ev.Name))
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.Error("watched directory error", pipelog.Error(err))
		}
	}
}

func (r *watchedDirectoryReader) Next(ctx context.Context) (*frame.Frame, error) {
	select {
	case path, ok := <-r.pending:
		if !ok {
			return nil, ErrDone
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		buf, err := rawimage.Decode(data)
		if err != nil {
			return nil, err
		}
		n := r.ctr.Next()
		f := frame.New(filepath.Base(path), path, n)
		f.Image = buf
		return f, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *watchedDirectoryReader) FrameCount() int64 { return -1 }
func (r *watchedDirectoryReader) FPS() float64      { return 0 }
func (r *watchedDirectoryReader) IsInfinite() bool  { return true }
func (r *watchedDirectoryReader) Close() error      { return r.watcher.Close() }
