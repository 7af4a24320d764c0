package extract

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/local/labelbridge/internal/geometry"
)

func testSet(t *testing.T) *geometry.Set {
	t.Helper()
	info := geometry.Fractions{Top: 0.52, Bottom: 0.98, Left: 0.02, Right: 0.98}
	set, err := geometry.NewSet(
		geometry.Canvas{WidthIn: 4, HeightIn: 6, DPI: 300},
		"labels",
		map[geometry.LabelType]geometry.Profile{
			"dhl": {
				Priority: 10,
				Match: geometry.MatchRule{
					Kind: geometry.MatchHLine, Band: []float64{0.333, 0.667}, MinSpan: 0.6, Threshold: 220,
				},
				Label:      geometry.Fractions{Top: 0.02, Bottom: 0.47, Left: 0.06, Right: 0.94},
				Info:       &info,
				PrintInfo:  true,
				LabelQueue: "labels",
				InfoQueue:  "documents",
			},
			"amazon": {
				Priority: 20,
				Match: geometry.MatchRule{
					Kind: geometry.MatchVLine, Band: []float64{0.05, 0.95}, MinSpan: 0.25, Threshold: 220,
				},
				Label:      geometry.Fractions{Top: 0.343, Bottom: 0.627, Left: 0.15, Right: 0.77},
				LabelQueue: "labels",
			},
		})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	return set
}

func TestRect(t *testing.T) {
	got := Rect(geometry.Fractions{Top: 0.1, Bottom: 0.43, Left: 0.06, Right: 0.95}, 2480, 3508)
	want := image.Rect(149, 351, 2356, 1508)
	if got != want {
		t.Errorf("Rect = %v, want %v", got, want)
	}
}

func TestRectFullPage(t *testing.T) {
	got := Rect(geometry.Fractions{Top: 0, Bottom: 1, Left: 0, Right: 1}, 2480, 3508)
	if got != image.Rect(0, 0, 2480, 3508) {
		t.Errorf("full-page Rect = %v", got)
	}
}

func TestExtractUnknown(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 100, 150))
	regions, err := Extract(page, geometry.Unknown, testSet(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if regions.Primary != nil || regions.Supplementary != nil {
		t.Error("unknown page must produce no regions")
	}
}

func TestExtractBothRegions(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 1000, 1500))
	regions, err := Extract(page, "dhl", testSet(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if regions.Primary == nil {
		t.Fatal("missing primary region")
	}
	if regions.Supplementary == nil {
		t.Fatal("dhl profile must produce the info region")
	}

	// label: top 0.02 bottom 0.47 left 0.06 right 0.94 on 1000x1500
	b := regions.Primary.Bounds()
	if b.Dx() != 880 || b.Dy() != 675 {
		t.Errorf("primary = %dx%d, want 880x675", b.Dx(), b.Dy())
	}
	b = regions.Supplementary.Bounds()
	if b.Dx() != 960 || b.Dy() != 690 {
		t.Errorf("supplementary = %dx%d, want 960x690", b.Dx(), b.Dy())
	}
}

func TestExtractLabelOnly(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 1000, 1500))
	regions, err := Extract(page, "amazon", testSet(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if regions.Primary == nil {
		t.Fatal("missing primary region")
	}
	if regions.Supplementary != nil {
		t.Error("amazon must not produce an info region")
	}
}

func TestExtractDeepCopy(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 100, 150))
	red := color.RGBA{R: 255, A: 255}
	for y := 0; y < 150; y++ {
		for x := 0; x < 100; x++ {
			page.SetRGBA(x, y, red)
		}
	}

	regions, err := Extract(page, "amazon", testSet(t))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	// Blacking out the source page must not alter the crop.
	for i := range page.Pix {
		page.Pix[i] = 0
	}
	crop := regions.Primary.(*image.RGBA)
	if got := crop.RGBAAt(2, 2); got != red {
		t.Errorf("crop pixel = %v after source release, want %v", got, red)
	}
}

func TestExtractMissingProfile(t *testing.T) {
	page := image.NewRGBA(image.Rect(0, 0, 100, 150))
	_, err := Extract(page, "fedex", testSet(t))
	var cerr *geometry.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestExtractCorruptedFractions(t *testing.T) {
	set := testSet(t)
	// A validated set mutated after construction: the crop must refuse to
	// proceed rather than clamp.
	p := set.Profiles["amazon"]
	p.Label.Top, p.Label.Bottom = 0.9, 0.1
	set.Profiles["amazon"] = p

	page := image.NewRGBA(image.Rect(0, 0, 100, 150))
	_, err := Extract(page, "amazon", set)
	var cerr *geometry.ConfigError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if cerr.Profile != "amazon" {
		t.Errorf("error names profile %q, want amazon", cerr.Profile)
	}
}
