// Package postprocess implements the Draw and Blur visual
// post-processors the Outputter delegates to (spec §4.5.2), operating
// directly on rawimage.Buffer. Grounded on golang.org/x/image, the
// only imaging library the example pack offers an un-cgo'd precedent
// for (font rendering via x/image/font/basicfont, scaling via
// x/image/draw), since no font-rendering or box-blur library appears
// anywhere else in the retrieval pack.
package postprocess

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/warpcomdev/inferpipe/internal/predict"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// DrawOptions controls the Draw post-processor's optional label/score
// overlay (spec §4.5.2, the --draw_labels/--draw_scores flags).
type DrawOptions struct {
	Labels bool
	Scores bool
	Color  color.RGBA
}

// DefaultDrawOptions mirrors the spec's defaults: outline only, no
// label/score overlay.
func DefaultDrawOptions() DrawOptions {
	return DrawOptions{Color: color.RGBA{R: 0xff, G: 0x30, B: 0x30, A: 0xff}}
}

// pixelBBox converts a normalized [0,1] bbox to pixel coordinates.
func pixelBBox(box predict.BBox, w, h int) image.Rectangle {
	return image.Rect(
		int(box.XMin*float64(w)), int(box.YMin*float64(h)),
		int(box.XMax*float64(w)), int(box.YMax*float64(h)),
	)
}

// Draw outlines each predicted bbox in record, optionally overlaying a
// label/score text box at the bottom-left corner (spec §4.5.2). It
// returns a new buffer; buf itself is left untouched, since the
// Outputter may also need to write the unmodified pixels to a
// different sink.
func Draw(buf *rawimage.Buffer, record *predict.Record, opts DrawOptions) *rawimage.Buffer {
	dst := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	draw.Draw(dst, dst.Bounds(), buf.StdImage(), image.Point{}, draw.Src)

	if record != nil {
		for _, out := range record.Outputs {
			for _, ann := range out.Labels.Predicted {
				if ann.ROI == nil {
					continue
				}
				rect := pixelBBox(ann.ROI.BBox, buf.Width, buf.Height)
				outline(dst, rect, opts.Color)
				if opts.Labels || opts.Scores {
					drawLabel(dst, rect, ann, opts)
				}
			}
		}
	}

	out := &rawimage.Buffer{}
	out.FromStdImage(dst)
	return out
}

// outline draws a 2px rectangle border.
func outline(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	const thickness = 2
	for t := 0; t < thickness; t++ {
		r := rect.Inset(-t)
		for x := r.Min.X; x < r.Max.X; x++ {
			dst.Set(x, r.Min.Y, c)
			dst.Set(x, r.Max.Y-1, c)
		}
		for y := r.Min.Y; y < r.Max.Y; y++ {
			dst.Set(r.Min.X, y, c)
			dst.Set(r.Max.X-1, y, c)
		}
	}
}

// drawLabel paints a filled background box with the label name and/or
// score, bottom-left of rect, using the stdlib-adjacent basicfont face
// from golang.org/x/image.
func drawLabel(dst *image.RGBA, rect image.Rectangle, ann predict.Annotation, opts DrawOptions) {
	text := ""
	if opts.Labels {
		text = ann.LabelName
	}
	if opts.Scores {
		if text != "" {
			text += " "
		}
		text += fmt.Sprintf("%.2f", ann.Score)
	}
	if text == "" {
		return
	}
	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, text).Round()
	boxHeight := 16
	boxRect := image.Rect(rect.Min.X, rect.Max.Y, rect.Min.X+textWidth+6, rect.Max.Y+boxHeight)
	draw.Draw(dst, boxRect, &image.Uniform{C: color.RGBA{R: 0, G: 0, B: 0, A: 0xc0}}, image.Point{}, draw.Over)

	drawer := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(boxRect.Min.X+3, boxRect.Max.Y-4),
	}
	drawer.DrawString(text)
}
