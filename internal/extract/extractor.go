package extract

import (
	"fmt"
	"image"
	"image/draw"
	"math"

	"github.com/local/labelbridge/internal/geometry"
)

// Regions are the cropped sub-images cut from one page. Supplementary is nil
// when the profile has no info region flagged for printing. Both crops are
// deep copies: the source page buffer is released after its iteration and
// must not be referenced by anything that outlives it.
type Regions struct {
	Primary       image.Image
	Supplementary image.Image
}

// Rect converts crop fractions into a pixel rectangle on a w x h page,
// rounding each edge to the nearest pixel. Fractions are validated to [0,1]
// with start < end, so the rectangle is inside the page by construction.
func Rect(f geometry.Fractions, w, h int) image.Rectangle {
	return image.Rect(
		int(math.Round(f.Left*float64(w))),
		int(math.Round(f.Top*float64(h))),
		int(math.Round(f.Right*float64(w))),
		int(math.Round(f.Bottom*float64(h))),
	)
}

// Extract cuts the primary label region, and the supplementary info region
// when the profile asks for it, out of a classified page.
//
// The Unknown type yields empty Regions and no error: a non-label page in a
// multi-page job simply produces no output. A recognized type whose profile
// is missing or carries malformed fractions is a configuration error,
// reported rather than clamped.
func Extract(page image.Image, typ geometry.LabelType, set *geometry.Set) (Regions, error) {
	if typ == geometry.Unknown {
		return Regions{}, nil
	}
	p, ok := set.Profiles[typ]
	if !ok {
		return Regions{}, &geometry.ConfigError{Profile: typ, Field: "profile", Reason: "classified type has no profile entry"}
	}

	b := page.Bounds()
	w, h := b.Dx(), b.Dy()

	primary, err := crop(page, typ, "label", p.Label, w, h)
	if err != nil {
		return Regions{}, err
	}
	regions := Regions{Primary: primary}

	if p.PrintInfo {
		if p.Info == nil {
			return Regions{}, &geometry.ConfigError{Profile: typ, Field: "info", Reason: "print_info set but no info region configured"}
		}
		supp, err := crop(page, typ, "info", *p.Info, w, h)
		if err != nil {
			return Regions{}, err
		}
		regions.Supplementary = supp
	}
	return regions, nil
}

func crop(page image.Image, typ geometry.LabelType, field string, f geometry.Fractions, w, h int) (image.Image, error) {
	if err := checkUse(typ, field, f); err != nil {
		return nil, err
	}
	r := Rect(f, w, h)
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	src := r.Add(page.Bounds().Min)
	draw.Draw(dst, dst.Bounds(), page, src.Min, draw.Src)
	return dst, nil
}

// checkUse re-validates fractions at first use. Profile sets built through
// geometry.NewSet are already validated; this catches sets assembled or
// mutated by hand before they can silently mis-crop.
func checkUse(typ geometry.LabelType, field string, f geometry.Fractions) error {
	for _, v := range []float64{f.Top, f.Bottom, f.Left, f.Right} {
		if v < 0 || v > 1 {
			return &geometry.ConfigError{Profile: typ, Field: field, Reason: fmt.Sprintf("fraction %v outside [0,1]", v)}
		}
	}
	if f.Top >= f.Bottom || f.Left >= f.Right {
		return &geometry.ConfigError{Profile: typ, Field: field, Reason: "region start must precede region end on both axes"}
	}
	return nil
}
