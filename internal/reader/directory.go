package reader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warpcomdev/inferpipe/internal/frame"
)

// directoryReader walks a directory tree in lexicographic path order,
// expanding each entry into one (image) or many (video) Frames. Mixed
// content is supported: two images, a recursive subdirectory, and a
// video all chain into one ordered Frame sequence (spec acceptance
// test "Directory with mixed files").
type directoryReader struct {
	opts    Options
	entries []string
	idx     int
	sub     Reader
	count   int64
}

func newDirectory(root string, opts Options) (Reader, error) {
	var entries []string
	walk := func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && !opts.Recursive {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if imageExt[ext] || videoExt[ext] {
			entries = append(entries, path)
		}
		return nil
	}
	if err := filepath.WalkDir(root, walk); err != nil {
		return nil, err
	}
	sort.Strings(entries)

	count := int64(0)
	for _, e := range entries {
		if videoExt[strings.ToLower(filepath.Ext(e))] {
			count = -1 // video frame counts require opening the container; unknown upfront
			break
		}
		count++
	}
	if count == -1 {
		count = int64(len(entries)) // conservative: at least one frame per entry
	}

	return &directoryReader{opts: opts, entries: entries, count: count}, nil
}

func (r *directoryReader) Next(ctx context.Context) (*frame.Frame, error) {
	for {
		if r.sub != nil {
			f, err := r.sub.Next(ctx)
			if err == nil {
				return f, nil
			}
			r.sub.Close()
			r.sub = nil
			if err != ErrDone {
				return nil, err
			}
		}
		if r.idx >= len(r.entries) {
			return nil, ErrDone
		}
		path := r.entries[r.idx]
		r.idx++
		ext := strings.ToLower(filepath.Ext(path))
		var (
			next Reader
			err  error
		)
		if videoExt[ext] {
			next, err = newVideoFile(path, r.opts)
		} else {
			next, err = newImage(path, r.opts)
		}
		if err != nil {
			return nil, err
		}
		r.sub = next
	}
}

func (r *directoryReader) FrameCount() int64 { return r.count }
func (r *directoryReader) FPS() float64      { return 0 }
func (r *directoryReader) IsInfinite() bool  { return false }
func (r *directoryReader) Close() error {
	if r.sub != nil {
		return r.sub.Close()
	}
	return nil
}
