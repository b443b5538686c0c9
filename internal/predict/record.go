// Package predict implements the two interchangeable prediction record
// shapes from spec §3 and §6: the canonical "native" (Vulcan) shape and
// the interchange "studio" shape, plus the threshold/partition policy
// of spec §4.4.1. Grounded on original_source's
// deepomatic/cli/cmds/studio_helpers/vulcan2studio.py, which this
// package's Record.ToStudio is a direct, idiomatic-Go rendering of.
package predict

import "fmt"

// BBox is a bounding box normalized to [0,1] (spec §3).
type BBox struct {
	XMin float64 `json:"xmin"`
	YMin float64 `json:"ymin"`
	XMax float64 `json:"xmax"`
	YMax float64 `json:"ymax"`
}

// ROI wraps a bounding box annotation region.
type ROI struct {
	BBox BBox `json:"bbox"`
}

// Annotation is one predicted or discarded label (spec §3).
type Annotation struct {
	LabelID   string   `json:"label_id,omitempty"`
	LabelName string   `json:"label_name"`
	Score     float64  `json:"score"`
	Threshold float64  `json:"threshold"`
	ROI       *ROI     `json:"roi,omitempty"`
}

// Labels groups predicted and discarded annotations for one output.
type Labels struct {
	Predicted []Annotation `json:"predicted"`
	Discarded []Annotation `json:"discarded"`
}

// Output wraps one Labels block; the native schema is an array of these
// per image, though the pipeline only ever produces one per Frame.
type Output struct {
	Labels Labels `json:"labels"`
}

// Record is the canonical in-memory shape produced by the Receiver
// (spec §3): a location plus one or more Outputs.
type Record struct {
	Location string   `json:"location,omitempty"`
	Outputs  []Output `json:"outputs"`
}

// Partition re-applies the threshold policy of spec §4.4.1: if
// userThreshold is non-nil, predicted+discarded are merged and
// re-partitioned against it; otherwise each annotation's own Threshold
// field decides. Partitioning always happens before any studio
// conversion (see SPEC_FULL.md §5, Open Question 2).
func (r *Record) Partition(userThreshold *float64) {
	for i := range r.Outputs {
		labels := &r.Outputs[i].Labels
		all := make([]Annotation, 0, len(labels.Predicted)+len(labels.Discarded))
		all = append(all, labels.Predicted...)
		all = append(all, labels.Discarded...)
		predicted := all[:0:0]
		discarded := make([]Annotation, 0, len(all))
		for _, a := range all {
			threshold := a.Threshold
			if userThreshold != nil {
				threshold = *userThreshold
			}
			if a.Score >= threshold {
				predicted = append(predicted, a)
			} else {
				discarded = append(discarded, a)
			}
		}
		labels.Predicted = predicted
		labels.Discarded = discarded
	}
}

// StudioRegion is one annotated_regions entry of the studio schema
// (spec §6).
type StudioRegion struct {
	Tags       []string      `json:"tags"`
	RegionType string        `json:"region_type"`
	Score      *float64      `json:"score,omitempty"`
	Threshold  *float64      `json:"threshold,omitempty"`
	Region     *StudioRegion2 `json:"region,omitempty"`
}

// StudioRegion2 is the xmin/xmax/ymin/ymax box shape studio uses, which
// differs from native's nested roi.bbox field order but carries the
// same four numbers (spec §6, round-trip property P5).
type StudioRegion2 struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

// StudioImage is one images[] entry of the studio schema.
type StudioImage struct {
	Location         string         `json:"location"`
	Data             map[string]any `json:"data,omitempty"`
	AnnotatedRegions []StudioRegion `json:"annotated_regions"`
}

// Studio is the interchange shape of spec §6.
type Studio struct {
	Tags   []string      `json:"tags"`
	Images []StudioImage `json:"images"`
}

// ToStudio converts the (already-thresholded) predicted annotations of
// a single-output Record into the studio shape, exactly as
// vulcan2studio.py does: only the predicted outputs of output[0]
// contribute an annotated_regions entry.
func (r *Record) ToStudio() (Studio, error) {
	if len(r.Outputs) == 0 {
		return Studio{Tags: []string{}, Images: []StudioImage{{Location: r.Location, AnnotatedRegions: []StudioRegion{}}}}, nil
	}
	seen := map[string]struct{}{}
	img := StudioImage{Location: r.Location, AnnotatedRegions: make([]StudioRegion, 0, len(r.Outputs[0].Labels.Predicted))}
	for _, pred := range r.Outputs[0].Labels.Predicted {
		score, threshold := pred.Score, pred.Threshold
		region := StudioRegion{
			Tags:       []string{pred.LabelName},
			RegionType: "Whole",
			Score:      &score,
			Threshold:  &threshold,
		}
		if pred.ROI != nil {
			region.RegionType = "Box"
			region.Region = &StudioRegion2{
				XMin: pred.ROI.BBox.XMin,
				XMax: pred.ROI.BBox.XMax,
				YMin: pred.ROI.BBox.YMin,
				YMax: pred.ROI.BBox.YMax,
			}
		}
		img.AnnotatedRegions = append(img.AnnotatedRegions, region)
		seen[pred.LabelName] = struct{}{}
	}
	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	return Studio{Tags: tags, Images: []StudioImage{img}}, nil
}

// FromStudio converts a single studio image back to the native shape,
// the inverse used by the file-backed offline backend when it is fed a
// studio-shaped prediction file (spec §6: "both formats are accepted as
// input-predictions").
func FromStudio(img StudioImage) (*Record, error) {
	rec := &Record{Location: img.Location, Outputs: []Output{{}}}
	labels := &rec.Outputs[0].Labels
	for _, region := range img.AnnotatedRegions {
		if len(region.Tags) == 0 {
			return nil, fmt.Errorf("predict: studio region missing tags")
		}
		ann := Annotation{LabelName: region.Tags[0]}
		if region.Score != nil {
			ann.Score = *region.Score
		}
		if region.Threshold != nil {
			ann.Threshold = *region.Threshold
		}
		if region.RegionType == "Box" && region.Region != nil {
			ann.ROI = &ROI{BBox: BBox{
				XMin: region.Region.XMin,
				XMax: region.Region.XMax,
				YMin: region.Region.YMin,
				YMax: region.Region.YMax,
			}}
		}
		labels.Predicted = append(labels.Predicted, ann)
	}
	return rec, nil
}
