package rawimage

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestFromImageAndAt(t *testing.T) {
	src := solidImage(4, 3, color.RGBA{R: 10, G: 20, B: 30, A: 0xff})
	buf := &Buffer{}
	buf.FromImage(src)

	if buf.Width != 4 || buf.Height != 3 {
		t.Fatalf("dims = %dx%d, want 4x3", buf.Width, buf.Height)
	}
	got := buf.At(1, 1)
	want := color.RGBA{R: 10, G: 20, B: 30, A: 0xff}
	if got != want {
		t.Fatalf("At(1,1) = %+v, want %+v", got, want)
	}
}

func TestAtOutOfBoundsIsZeroValue(t *testing.T) {
	buf := &Buffer{}
	buf.Reset(2, 2, 6)
	if got := buf.At(-1, 0); got != (color.RGBA{}) {
		t.Fatalf("At(-1,0) = %+v, want zero value", got)
	}
	if got := buf.At(5, 5); got != (color.RGBA{}) {
		t.Fatalf("At(5,5) = %+v, want zero value", got)
	}
}

func TestStdImageFromStdImageRoundTrip(t *testing.T) {
	src := solidImage(3, 2, color.RGBA{R: 5, G: 6, B: 7, A: 0xff})
	buf := &Buffer{}
	buf.FromImage(src)

	std := buf.StdImage()
	out := &Buffer{}
	out.FromStdImage(std)

	if out.Width != buf.Width || out.Height != buf.Height {
		t.Fatalf("round-tripped dims = %dx%d, want %dx%d", out.Width, out.Height, buf.Width, buf.Height)
	}
	if got, want := out.At(0, 0), buf.At(0, 0); got != want {
		t.Fatalf("round-tripped pixel = %+v, want %+v", got, want)
	}
}

func TestEncodeJPEGRejectsEmptyBuffer(t *testing.T) {
	if _, err := EncodeJPEG(&Buffer{}, 80); err == nil {
		t.Fatal("EncodeJPEG should reject a zero-sized buffer")
	}
}

func TestEncodeAndDecodeJPEG(t *testing.T) {
	src := solidImage(8, 8, color.RGBA{R: 200, G: 100, B: 50, A: 0xff})
	buf := &Buffer{}
	buf.FromImage(src)

	data, err := EncodeJPEG(buf, 90)
	if err != nil {
		t.Fatalf("EncodeJPEG: %v", err)
	}
	if _, err := jpeg.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("produced data does not decode as JPEG: %v", err)
	}

	decoded, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Width != 8 || decoded.Height != 8 {
		t.Fatalf("decoded dims = %dx%d, want 8x8", decoded.Width, decoded.Height)
	}
}
