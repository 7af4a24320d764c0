package compose

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"

	"github.com/local/labelbridge/internal/geometry"
)

// Canvas is the fixed output surface in pixels, constructed once from the
// physical label size and DPI, then shared read-only across all pages.
type Canvas struct {
	Width      int
	Height     int
	Background color.Color
}

// FromGeometry resolves the configured physical canvas to pixels.
func FromGeometry(c geometry.Canvas) Canvas {
	w, h := c.PixelSize()
	return Canvas{Width: w, Height: h, Background: c.BackgroundColor()}
}

// ScaleFactor returns the uniform factor that fits src inside dst without
// exceeding either axis: the smaller of the per-axis ratios.
func ScaleFactor(srcW, srcH, dstW, dstH int) float64 {
	return math.Min(float64(dstW)/float64(srcW), float64(dstH)/float64(srcH))
}

// Compose scales the region uniformly to fit the canvas, centers it and
// fills the rest with the background color. The output always has exactly
// the canvas dimensions. Catmull-Rom resampling keeps crop edges clean at
// print resolution; small crops upscaled far beyond their size come out
// blurry, which is accepted output degradation rather than a failure.
// The input region is not mutated.
func Compose(region image.Image, c Canvas) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, c.Width, c.Height))
	draw.Draw(out, out.Bounds(), image.NewUniform(c.Background), image.Point{}, draw.Src)

	b := region.Bounds()
	srcW, srcH := b.Dx(), b.Dy()
	if srcW <= 0 || srcH <= 0 {
		return out
	}

	scale := ScaleFactor(srcW, srcH, c.Width, c.Height)
	newW := int(math.Round(float64(srcW) * scale))
	newH := int(math.Round(float64(srcH) * scale))
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > c.Width {
		newW = c.Width
	}
	if newH > c.Height {
		newH = c.Height
	}

	offX := (c.Width - newW) / 2
	offY := (c.Height - newH) / 2
	dst := image.Rect(offX, offY, offX+newW, offY+newH)
	xdraw.CatmullRom.Scale(out, dst, region, b, xdraw.Over, nil)
	return out
}
