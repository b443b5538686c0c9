// Package rawimage holds the decoded pixel buffer that flows through the
// pipeline alongside a Frame, generalized from the teacher's cgo-backed
// jpeg.Image into a plain Go buffer (see DESIGN.md for why cgo/turbojpeg
// was dropped in favor of the standard image/jpeg codec).
package rawimage

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
)

// Buffer is a decoded RGB image plus its dimensions, stored as tightly
// packed 3-bytes-per-pixel rows. It is reused across frames by callers
// that pool buffers (see internal/queue), mirroring the teacher's
// Image.Alloc/Copy reuse pattern.
type Buffer struct {
	Pix    []byte
	Width  int
	Height int
	Stride int
}

// Reset resizes the buffer, reusing the backing array when it already
// has enough capacity.
func (b *Buffer) Reset(width, height, stride int) {
	size := stride * height
	if cap(b.Pix) < size {
		b.Pix = make([]byte, size)
	}
	b.Pix = b.Pix[:size]
	b.Width = width
	b.Height = height
	b.Stride = stride
}

// Size reports the logical size in bytes (rows × stride).
func (b *Buffer) Size() int {
	return b.Height * b.Stride
}

// FromImage decodes a standard library image.Image into the buffer as
// 3-byte-per-pixel RGB, the format the spec's Frame.image conceptually
// carries ("H×W×3 bytes").
func (b *Buffer) FromImage(img image.Image) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	b.Reset(w, h, w*3)
	for y := 0; y < h; y++ {
		row := b.Pix[y*b.Stride : y*b.Stride+b.Stride]
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			row[x*3+0] = byte(r >> 8)
			row[x*3+1] = byte(g >> 8)
			row[x*3+2] = byte(bl >> 8)
		}
	}
}

// At returns the pixel color at (x, y).
func (b *Buffer) At(x, y int) color.RGBA {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	i := y*b.Stride + x*3
	return color.RGBA{R: b.Pix[i], G: b.Pix[i+1], B: b.Pix[i+2], A: 0xff}
}

// Set writes the pixel color at (x, y), used by Draw/Blur post-processors.
func (b *Buffer) Set(x, y int, c color.RGBA) {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return
	}
	i := y*b.Stride + x*3
	b.Pix[i+0] = c.R
	b.Pix[i+1] = c.G
	b.Pix[i+2] = c.B
}

// StdImage returns an *image.RGBA snapshot of the buffer, for use by
// JPEG encoding and any stdlib image algorithm (golang.org/x/image/draw).
func (b *Buffer) StdImage() *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		srcRow := b.Pix[y*b.Stride : y*b.Stride+b.Width*3]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+b.Width*4]
		for x := 0; x < b.Width; x++ {
			dstRow[x*4+0] = srcRow[x*3+0]
			dstRow[x*4+1] = srcRow[x*3+1]
			dstRow[x*4+2] = srcRow[x*3+2]
			dstRow[x*4+3] = 0xff
		}
	}
	return dst
}

// FromStdImage copies an *image.RGBA back into the buffer, used after a
// post-processor has drawn onto a StdImage snapshot.
func (b *Buffer) FromStdImage(src *image.RGBA) {
	bounds := src.Bounds()
	b.Reset(bounds.Dx(), bounds.Dy(), bounds.Dx()*3)
	for y := 0; y < b.Height; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+b.Width*4]
		dstRow := b.Pix[y*b.Stride : y*b.Stride+b.Width*3]
		for x := 0; x < b.Width; x++ {
			dstRow[x*3+0] = srcRow[x*4+0]
			dstRow[x*3+1] = srcRow[x*4+1]
			dstRow[x*3+2] = srcRow[x*4+2]
		}
	}
}

// EncodeJPEG encodes the buffer to JPEG bytes at the given quality, the
// Encoder stage's sole responsibility (spec §4.2).
func EncodeJPEG(buf *Buffer, quality int) ([]byte, error) {
	if buf == nil || buf.Width == 0 || buf.Height == 0 {
		return nil, fmt.Errorf("rawimage: cannot encode empty buffer")
	}
	var out bytes.Buffer
	if err := jpeg.Encode(&out, buf.StdImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode reads any stdlib-decodable image (JPEG/PNG/GIF) into a Buffer.
func Decode(data []byte) (*Buffer, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	buf := &Buffer{}
	buf.FromImage(img)
	return buf, nil
}
