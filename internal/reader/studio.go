package reader

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/pipelog"
	"github.com/warpcomdev/inferpipe/internal/predict"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// manifest is the subset of the Studio JSON schema (spec §6) this
// reader needs: a list of image locations.
type manifest struct {
	Images []struct {
		Location string `json:"location"`
	} `json:"images"`
}

// studioManifestReader validates a Studio-JSON manifest and
// materializes a directory-like Reader over the locations it lists,
// skipping (and logging) any that no longer resolve (spec §4.1: "missing
// locations are logged and skipped, not fatal").
type studioManifestReader struct {
	locations []string
	idx       int
	ctr       *Counter
	log       pipelog.Logger
}

func newStudioManifest(path string, opts Options) (Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = pipelog.Nop()
	}
	base := filepath.Dir(path)
	locations := make([]string, 0, len(m.Images))
	for _, img := range m.Images {
		loc := img.Location
		if !filepath.IsAbs(loc) {
			loc = filepath.Join(base, loc)
		}
		if _, err := os.Stat(loc); err != nil {
			log.Warn("studio manifest location missing, skipping", pipelog.String("location", loc))
			continue
		}
		locations = append(locations, loc)
	}
	return &studioManifestReader{locations: locations, ctr: opts.Counter, log: log}, nil
}

func (r *studioManifestReader) Next(ctx context.Context) (*frame.Frame, error) {
	if r.idx >= len(r.locations) {
		return nil, ErrDone
	}
	path := r.locations[r.idx]
	r.idx++
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
}

func (r *studioManifestReader) FrameCount() int64 { return int64(len(r.locations)) }
func (r *studioManifestReader) FPS() float64      { return 0 }
func (r *studioManifestReader) IsInfinite() bool  { return false }
func (r *studioManifestReader) Close() error      { return nil }

// FromStudioFile loads a pre-recorded studio or native JSON document,
// used to build the file-backed backend's index (spec §4.6). Both
// formats are accepted as input-predictions (spec §6): native is a
// top-level array of {location, outputs}, studio a top-level
// {tags, images} object, so the two are told apart by top-level JSON
// shape before either is decoded into its own struct.
func FromStudioFile(path string) (map[string]*predict.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var records []predict.Record
	if err := json.Unmarshal(data, &records); err == nil {
		index := make(map[string]*predict.Record, len(records))
		for i := range records {
			index[records[i].Location] = &records[i]
		}
		return index, nil
	}

	var doc predict.Studio
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	index := make(map[string]*predict.Record, len(doc.Images))
	for _, img := range doc.Images {
		rec, err := predict.FromStudio(img)
		if err != nil {
			continue
		}
		index[img.Location] = rec
	}
	return index, nil
}
