package classify

import (
	"image"
	"image/color"
	"math"

	"github.com/rs/zerolog/log"

	"github.com/local/labelbridge/internal/geometry"
)

// Classifier decides which configured label template a page image matches,
// using cheap structural signals on a binarized view of the page. No OCR:
// layouts are fixed and known, so recognition is "does this pixel pattern
// match the template", not scene understanding.
type Classifier struct {
	set *geometry.Set
}

// New creates a classifier over the given profile set.
func New(set *geometry.Set) *Classifier {
	return &Classifier{set: set}
}

// Classify evaluates profile rules in priority order and returns the first
// match. A page matching no rule returns geometry.Unknown; that is the
// designed outcome for cover sheets and filing pages, never an error.
// Pure function of the pixel content and the active configuration.
func (c *Classifier) Classify(img image.Image) geometry.LabelType {
	gray := toGrayscale(img)
	for _, name := range c.set.Ordered() {
		p := c.set.Profiles[name]
		if c.matches(gray, p.Match) {
			log.Debug().Str("label_type", string(name)).Str("rule", p.Match.Kind).Msg("page classified")
			return name
		}
	}
	return geometry.Unknown
}

func (c *Classifier) matches(gray *image.Gray, m geometry.MatchRule) bool {
	switch m.Kind {
	case geometry.MatchHLine:
		return hasHorizontalLine(gray, m)
	case geometry.MatchVLine:
		return hasVerticalLine(gray, m)
	case geometry.MatchInkRatio:
		ratio := inkRatio(gray, m.Region, uint8(m.Threshold))
		return ratio >= m.MinInk && ratio <= m.MaxInk
	}
	return false
}

// hasHorizontalLine reports whether some row inside the vertical band
// carries a continuous dark run spanning at least min_span of the width.
// This is the DHL cut-line signal: a printed scissors line across the page.
func hasHorizontalLine(gray *image.Gray, m geometry.MatchRule) bool {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	y0 := b.Min.Y + int(math.Round(m.Band[0]*float64(h)))
	y1 := b.Min.Y + int(math.Round(m.Band[1]*float64(h)))
	need := int(math.Round(m.MinSpan * float64(w)))
	thr := uint8(m.Threshold)

	for y := y0; y < y1; y++ {
		run := 0
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y < thr {
				run++
				if run >= need {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

// hasVerticalLine reports whether some column inside the horizontal band
// carries a continuous dark run spanning at least min_span of the height,
// the signature of a boxed label border.
func hasVerticalLine(gray *image.Gray, m geometry.MatchRule) bool {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	x0 := b.Min.X + int(math.Round(m.Band[0]*float64(w)))
	x1 := b.Min.X + int(math.Round(m.Band[1]*float64(w)))
	need := int(math.Round(m.MinSpan * float64(h)))
	thr := uint8(m.Threshold)

	for x := x0; x < x1; x++ {
		run := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if gray.GrayAt(x, y).Y < thr {
				run++
				if run >= need {
					return true
				}
			} else {
				run = 0
			}
		}
	}
	return false
}

// inkRatio returns the fraction of dark pixels inside the region.
func inkRatio(gray *image.Gray, f geometry.Fractions, thr uint8) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	x0 := b.Min.X + int(math.Round(f.Left*float64(w)))
	x1 := b.Min.X + int(math.Round(f.Right*float64(w)))
	y0 := b.Min.Y + int(math.Round(f.Top*float64(h)))
	y1 := b.Min.Y + int(math.Round(f.Bottom*float64(h)))
	if x1 <= x0 || y1 <= y0 {
		return 0
	}

	dark := 0
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			if gray.GrayAt(x, y).Y < thr {
				dark++
			}
		}
	}
	return float64(dark) / float64((x1-x0)*(y1-y0))
}

// toGrayscale converts an image to grayscale.
func toGrayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}
