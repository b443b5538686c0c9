package predict

import "testing"

func TestPartitionOwnThreshold(t *testing.T) {
	rec := &Record{Outputs: []Output{{Labels: Labels{
		Predicted: []Annotation{{LabelName: "cat", Score: 0.9, Threshold: 0.5}},
		Discarded: []Annotation{{LabelName: "dog", Score: 0.3, Threshold: 0.5}},
	}}}}

	rec.Partition(nil)

	labels := rec.Outputs[0].Labels
	if len(labels.Predicted) != 1 || labels.Predicted[0].LabelName != "cat" {
		t.Fatalf("Predicted = %+v, want only cat", labels.Predicted)
	}
	if len(labels.Discarded) != 1 || labels.Discarded[0].LabelName != "dog" {
		t.Fatalf("Discarded = %+v, want only dog", labels.Discarded)
	}
}

func TestPartitionUserThresholdOverride(t *testing.T) {
	rec := &Record{Outputs: []Output{{Labels: Labels{
		Predicted: []Annotation{{LabelName: "cat", Score: 0.6, Threshold: 0.5}},
		Discarded: []Annotation{{LabelName: "dog", Score: 0.4, Threshold: 0.1}},
	}}}}

	strict := 0.9
	rec.Partition(&strict)

	labels := rec.Outputs[0].Labels
	if len(labels.Predicted) != 0 {
		t.Fatalf("Predicted = %+v, want none at threshold 0.9", labels.Predicted)
	}
	if len(labels.Discarded) != 2 {
		t.Fatalf("Discarded = %+v, want both annotations", labels.Discarded)
	}
}

func TestStudioRoundTrip(t *testing.T) {
	rec := &Record{
		Location: "frame-1.jpg",
		Outputs: []Output{{Labels: Labels{
			Predicted: []Annotation{
				{LabelName: "person", Score: 0.95, Threshold: 0.5, ROI: &ROI{BBox: BBox{XMin: 0.1, YMin: 0.2, XMax: 0.3, YMax: 0.4}}},
			},
		}}},
	}

	studio, err := rec.ToStudio()
	if err != nil {
		t.Fatalf("ToStudio: %v", err)
	}
	if len(studio.Images) != 1 || studio.Images[0].Location != "frame-1.jpg" {
		t.Fatalf("studio image = %+v", studio.Images)
	}
	if len(studio.Images[0].AnnotatedRegions) != 1 {
		t.Fatalf("AnnotatedRegions = %+v, want 1 region", studio.Images[0].AnnotatedRegions)
	}
	region := studio.Images[0].AnnotatedRegions[0]
	if region.RegionType != "Box" || region.Region == nil {
		t.Fatalf("region = %+v, want a Box region with coordinates", region)
	}

	back, err := FromStudio(studio.Images[0])
	if err != nil {
		t.Fatalf("FromStudio: %v", err)
	}
	gotAnn := back.Outputs[0].Labels.Predicted[0]
	wantAnn := rec.Outputs[0].Labels.Predicted[0]
	if gotAnn.LabelName != wantAnn.LabelName || gotAnn.Score != wantAnn.Score {
		t.Fatalf("round-tripped annotation = %+v, want %+v", gotAnn, wantAnn)
	}
	if gotAnn.ROI.BBox != wantAnn.ROI.BBox {
		t.Fatalf("round-tripped bbox = %+v, want %+v", gotAnn.ROI.BBox, wantAnn.ROI.BBox)
	}
}

func TestToStudioNoOutputs(t *testing.T) {
	rec := &Record{Location: "empty.jpg"}
	studio, err := rec.ToStudio()
	if err != nil {
		t.Fatalf("ToStudio: %v", err)
	}
	if len(studio.Images) != 1 || len(studio.Images[0].AnnotatedRegions) != 0 {
		t.Fatalf("studio = %+v, want one image with no regions", studio)
	}
}

func TestFromStudioMissingTagsErrors(t *testing.T) {
	img := StudioImage{Location: "bad.jpg", AnnotatedRegions: []StudioRegion{{RegionType: "Whole"}}}
	if _, err := FromStudio(img); err == nil {
		t.Fatal("FromStudio should reject a region with no tags")
	}
}
