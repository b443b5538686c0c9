package reader

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/warpcomdev/inferpipe/internal/predict"
)

func writeTemp(t *testing.T, name string, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestFromStudioFileNativeArray(t *testing.T) {
	native := []predict.Record{
		{Location: "a.jpg", Outputs: []predict.Output{{Labels: predict.Labels{
			Predicted: []predict.Annotation{{LabelName: "cat", Score: 0.9}},
		}}}},
		{Location: "b.jpg", Outputs: []predict.Output{{Labels: predict.Labels{
			Predicted: []predict.Annotation{{LabelName: "dog", Score: 0.7}},
		}}}},
	}
	path := writeTemp(t, "native.json", native)

	index, err := FromStudioFile(path)
	if err != nil {
		t.Fatalf("FromStudioFile: %v", err)
	}
	if len(index) != 2 {
		t.Fatalf("index has %d entries, want 2", len(index))
	}
	rec, ok := index["a.jpg"]
	if !ok {
		t.Fatal("index missing a.jpg")
	}
	if len(rec.Outputs) != 1 || rec.Outputs[0].Labels.Predicted[0].LabelName != "cat" {
		t.Fatalf("a.jpg record = %+v, want cat annotation", rec)
	}
}

func TestFromStudioFileStudioObject(t *testing.T) {
	studio := predict.Studio{
		Tags: []string{"person"},
		Images: []predict.StudioImage{
			{
				Location: "c.jpg",
				AnnotatedRegions: []predict.StudioRegion{
					{Tags: []string{"person"}, RegionType: "Whole"},
				},
			},
		},
	}
	path := writeTemp(t, "studio.json", studio)

	index, err := FromStudioFile(path)
	if err != nil {
		t.Fatalf("FromStudioFile: %v", err)
	}
	if len(index) != 1 {
		t.Fatalf("index has %d entries, want 1", len(index))
	}
	rec, ok := index["c.jpg"]
	if !ok {
		t.Fatal("index missing c.jpg")
	}
	if len(rec.Outputs[0].Labels.Predicted) != 1 || rec.Outputs[0].Labels.Predicted[0].LabelName != "person" {
		t.Fatalf("c.jpg record = %+v, want person annotation", rec)
	}
}
