package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/warpcomdev/inferpipe/internal/frame"
	"github.com/warpcomdev/inferpipe/internal/predict"
)

// jsonSink writes either one file per frame (descriptor carries a
// printf counter) or a single aggregated studio-shaped document on
// Close (spec §4.5.1).
type jsonSink struct {
	pattern    string
	perFrame   bool
	aggregated predict.Studio
	tags       map[string]struct{}
}

func newJSON(pattern string, perFrame bool) *jsonSink {
	return &jsonSink{pattern: pattern, perFrame: perFrame, tags: map[string]struct{}{}}
}

func (s *jsonSink) Write(ctx context.Context, f *frame.Frame) error {
	if s.perFrame {
		path := fmt.Sprintf(s.pattern, f.VideoFrameIndex)
		data, err := marshalRecord(f)
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	}
	if f.Studio != nil && len(f.Studio.Images) > 0 {
		s.aggregated.Images = append(s.aggregated.Images, f.Studio.Images...)
		for _, t := range f.Studio.Tags {
			s.tags[t] = struct{}{}
		}
		return nil
	}
	if f.Predictions != nil {
		studio, err := f.Predictions.ToStudio()
		if err != nil {
			return err
		}
		s.aggregated.Images = append(s.aggregated.Images, studio.Images...)
		for _, t := range studio.Tags {
			s.tags[t] = struct{}{}
		}
	}
	return nil
}

func (s *jsonSink) Close() error {
	if s.perFrame {
		return nil
	}
	tags := make([]string, 0, len(s.tags))
	for t := range s.tags {
		tags = append(tags, t)
	}
	s.aggregated.Tags = tags
	data, err := json.MarshalIndent(s.aggregated, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.pattern, data, 0o644)
}
