package postprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/warpcomdev/inferpipe/internal/predict"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

func blankBuffer(w, h int) *rawimage.Buffer {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 0x10, G: 0x10, B: 0x10, A: 0xff})
		}
	}
	buf := &rawimage.Buffer{}
	buf.FromImage(img)
	return buf
}

func recordWithBox(xmin, ymin, xmax, ymax float64) *predict.Record {
	return &predict.Record{Outputs: []predict.Output{{Labels: predict.Labels{
		Predicted: []predict.Annotation{{
			LabelName: "person",
			Score:     0.8,
			ROI:       &predict.ROI{BBox: predict.BBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax}},
		}},
	}}}}
}

func TestDrawLeavesInputUntouched(t *testing.T) {
	buf := blankBuffer(20, 20)
	before := buf.At(1, 1)

	out := Draw(buf, recordWithBox(0.1, 0.1, 0.9, 0.9), DefaultDrawOptions())
	if out == buf {
		t.Fatal("Draw should return a new buffer, not mutate the input")
	}
	if got := buf.At(1, 1); got != before {
		t.Fatalf("input buffer was mutated: got %+v, want %+v", got, before)
	}
}

func TestDrawOutlinesBox(t *testing.T) {
	buf := blankBuffer(20, 20)
	opts := DefaultDrawOptions()
	out := Draw(buf, recordWithBox(0.1, 0.1, 0.9, 0.9), opts)

	rect := pixelBBox(predict.BBox{XMin: 0.1, YMin: 0.1, XMax: 0.9, YMax: 0.9}, 20, 20)
	edge := out.At(rect.Min.X, rect.Min.Y)
	if edge != opts.Color {
		t.Fatalf("edge pixel = %+v, want outline color %+v", edge, opts.Color)
	}
}

func TestDrawNilRecordIsNoOp(t *testing.T) {
	buf := blankBuffer(10, 10)
	before := buf.At(5, 5)
	out := Draw(buf, nil, DefaultDrawOptions())
	if got := out.At(5, 5); got != before {
		t.Fatalf("Draw with a nil record changed pixels: got %+v, want %+v", got, before)
	}
}

func TestBlurBlackFillsBox(t *testing.T) {
	buf := blankBuffer(20, 20)
	rec := recordWithBox(0.1, 0.1, 0.9, 0.9)
	out := Blur(buf, rec, BlurOptions{Method: BlurBlack})

	rect := pixelBBox(predict.BBox{XMin: 0.1, YMin: 0.1, XMax: 0.9, YMax: 0.9}, 20, 20)
	mid := out.At((rect.Min.X+rect.Max.X)/2, (rect.Min.Y+rect.Max.Y)/2)
	if mid != (color.RGBA{A: 0xff}) {
		t.Fatalf("blurred region pixel = %+v, want black", mid)
	}
}

func TestBlurPixelChangesRegion(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			c := color.RGBA{A: 0xff}
			if (x+y)%2 == 0 {
				c.R = 0xff
			} else {
				c.B = 0xff
			}
			img.SetRGBA(x, y, c)
		}
	}
	buf := &rawimage.Buffer{}
	buf.FromImage(img)

	rec := recordWithBox(0.1, 0.1, 0.9, 0.9)
	out := Blur(buf, rec, BlurOptions{Method: BlurPixel, Strength: 4})

	rect := pixelBBox(predict.BBox{XMin: 0.1, YMin: 0.1, XMax: 0.9, YMax: 0.9}, 20, 20)
	a := out.At(rect.Min.X+1, rect.Min.Y+1)
	b := out.At(rect.Min.X+2, rect.Min.Y+1)
	if a != b {
		t.Fatalf("pixelated block should be uniform across neighboring source pixels, got %+v vs %+v", a, b)
	}
}
