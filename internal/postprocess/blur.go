package postprocess

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"

	"github.com/warpcomdev/inferpipe/internal/predict"
	"github.com/warpcomdev/inferpipe/internal/rawimage"
)

// BlurMethod selects one of the three region-obscuring strategies of
// spec §4.5.2.
type BlurMethod string

const (
	BlurPixel    BlurMethod = "pixel"
	BlurGaussian BlurMethod = "gaussian"
	BlurBlack    BlurMethod = "black"
)

// BlurOptions controls the Blur post-processor.
type BlurOptions struct {
	Method   BlurMethod
	Strength int // lower-bounds the pixel method's downscale shape
}

// Blur obscures each predicted bbox region of record using opts.Method
// (spec §4.5.2). Like Draw, it returns a new buffer and leaves buf
// untouched.
func Blur(buf *rawimage.Buffer, record *predict.Record, opts BlurOptions) *rawimage.Buffer {
	dst := image.NewRGBA(image.Rect(0, 0, buf.Width, buf.Height))
	draw.Draw(dst, dst.Bounds(), buf.StdImage(), image.Point{}, draw.Src)

	if record != nil {
		for _, out := range record.Outputs {
			for _, ann := range out.Labels.Predicted {
				if ann.ROI == nil {
					continue
				}
				rect := pixelBBox(ann.ROI.BBox, buf.Width, buf.Height).Intersect(dst.Bounds())
				if rect.Empty() {
					continue
				}
				switch opts.Method {
				case BlurGaussian:
					boxBlur(dst, rect, blurRadius(opts.Strength))
				case BlurBlack:
					draw.Draw(dst, rect, image.NewUniform(color.Black), image.Point{}, draw.Src)
				default:
					pixelate(dst, rect, opts.Strength)
				}
			}
		}
	}

	result := &rawimage.Buffer{}
	result.FromStdImage(dst)
	return result
}

func blurRadius(strength int) int {
	if strength < 1 {
		return 1
	}
	return strength
}

// pixelate implements the "pixel" method: downscale the region with
// nearest-neighbor interpolation to a shape lower-bounded by strength,
// then upscale back, using golang.org/x/image/draw (spec §4.5.2).
func pixelate(dst *image.RGBA, rect image.Rectangle, strength int) {
	factor := strength
	if factor < 2 {
		factor = 2
	}
	w, h := rect.Dx(), rect.Dy()
	smallW, smallH := w/factor, h/factor
	if smallW < 1 {
		smallW = 1
	}
	if smallH < 1 {
		smallH = 1
	}
	small := image.NewRGBA(image.Rect(0, 0, smallW, smallH))
	xdraw.NearestNeighbor.Scale(small, small.Bounds(), dst, rect, xdraw.Over, nil)
	xdraw.NearestNeighbor.Scale(dst, rect, small, small.Bounds(), xdraw.Src, nil)
}

// boxBlur approximates a gaussian blur with repeated box-blur passes,
// cheap and dependency-free where x/image ships no true gaussian
// kernel (see DESIGN.md).
func boxBlur(dst *image.RGBA, rect image.Rectangle, radius int) {
	src := image.NewRGBA(rect)
	draw.Draw(src, rect, dst, rect.Min, draw.Src)
	const passes = 3
	for p := 0; p < passes; p++ {
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			for x := rect.Min.X; x < rect.Max.X; x++ {
				var r, g, b, n int
				for dy := -radius; dy <= radius; dy++ {
					for dx := -radius; dx <= radius; dx++ {
						sx, sy := x+dx, y+dy
						if sx < rect.Min.X || sx >= rect.Max.X || sy < rect.Min.Y || sy >= rect.Max.Y {
							continue
						}
						c := src.RGBAAt(sx, sy)
						r += int(c.R)
						g += int(c.G)
						b += int(c.B)
						n++
					}
				}
				dst.SetRGBA(x, y, color.RGBA{R: uint8(r / n), G: uint8(g / n), B: uint8(b / n), A: 0xff})
			}
		}
		draw.Draw(src, rect, dst, rect.Min, draw.Src)
	}
}
