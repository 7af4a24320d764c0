package classify

import (
	"image"
	"image/color"
	"testing"

	"github.com/local/labelbridge/internal/geometry"
)

func testSet(t *testing.T) *geometry.Set {
	t.Helper()
	set, err := geometry.NewSet(
		geometry.Canvas{WidthIn: 4, HeightIn: 6, DPI: 300},
		"labels",
		map[geometry.LabelType]geometry.Profile{
			"dhl": {
				Priority: 10,
				Match: geometry.MatchRule{
					Kind:      geometry.MatchHLine,
					Band:      []float64{0.333, 0.667},
					MinSpan:   0.6,
					Threshold: 220,
				},
				Label:      geometry.Fractions{Top: 0.02, Bottom: 0.47, Left: 0.06, Right: 0.94},
				LabelQueue: "labels",
			},
			"amazon": {
				Priority: 20,
				Match: geometry.MatchRule{
					Kind:      geometry.MatchVLine,
					Band:      []float64{0.05, 0.95},
					MinSpan:   0.25,
					Threshold: 220,
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

// whitePage returns an all-white grayscale page.
func whitePage(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func drawHLine(img *image.Gray, y, x0, x1 int) {
	for x := x0; x < x1; x++ {
		img.SetGray(x, y, color.Gray{Y: 0})
	}
}

func drawVLine(img *image.Gray, x, y0, y1 int) {
	for y := y0; y < y1; y++ {
		img.SetGray(x, y, color.Gray{Y: 0})
	}
}

func TestClassifyCutLine(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	// Continuous dark row across 80% of the width, mid-page.
	drawHLine(page, 600, 80, 720)

	if got := c.Classify(page); got != "dhl" {
		t.Errorf("Classify = %q, want dhl", got)
	}
}

func TestClassifyBorderBox(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	// Tall border edge: 40% of the page height, no horizontal line.
	drawVLine(page, 150, 400, 880)

	if got := c.Classify(page); got != "amazon" {
		t.Errorf("Classify = %q, want amazon", got)
	}
}

func TestClassifyBlankPage(t *testing.T) {
	c := New(testSet(t))
	if got := c.Classify(whitePage(800, 1200)); got != geometry.Unknown {
		t.Errorf("Classify = %q, want unknown", got)
	}
}

func TestClassifyLineOutsideBand(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	// Full-width line near the top: outside the dhl band, so no match.
	drawHLine(page, 50, 0, 800)

	if got := c.Classify(page); got != geometry.Unknown {
		t.Errorf("Classify = %q, want unknown", got)
	}
}

func TestClassifyBrokenLineIgnored(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	// Dashed row: total ink is plenty but no single run reaches min_span.
	for x := 0; x < 800; x += 20 {
		drawHLine(page, 600, x, x+10)
	}

	if got := c.Classify(page); got != geometry.Unknown {
		t.Errorf("Classify = %q, want unknown", got)
	}
}

func TestClassifyPriorityOrder(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	// Page carries both signals; the lower priority value wins.
	drawHLine(page, 600, 80, 720)
	drawVLine(page, 150, 300, 900)

	if got := c.Classify(page); got != "dhl" {
		t.Errorf("Classify = %q, want dhl (priority 10 before 20)", got)
	}
}

func TestClassifyDeterministic(t *testing.T) {
	c := New(testSet(t))
	page := whitePage(800, 1200)
	drawHLine(page, 610, 60, 740)

	first := c.Classify(page)
	for i := 0; i < 5; i++ {
		if got := c.Classify(page); got != first {
			t.Fatalf("run %d: Classify = %q, first run gave %q", i, got, first)
		}
	}
}

func TestClassifyInkRatio(t *testing.T) {
	set, err := geometry.NewSet(
		geometry.Canvas{WidthIn: 4, HeightIn: 6, DPI: 300},
		"labels",
		map[geometry.LabelType]geometry.Profile{
			"dense": {
				Priority: 10,
				Match: geometry.MatchRule{
					Kind:      geometry.MatchInkRatio,
					Region:    geometry.Fractions{Top: 0.25, Bottom: 0.75, Left: 0.25, Right: 0.75},
					MinInk:    0.3,
					MaxInk:    1.0,
					Threshold: 220,
				},
				Label:      geometry.Fractions{Top: 0.1, Bottom: 0.9, Left: 0.1, Right: 0.9},
				LabelQueue: "labels",
			},
		})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	c := New(set)

	page := whitePage(400, 600)
	// Fill the central region solid black: ink ratio 1.0 inside it.
	for y := 150; y < 450; y++ {
		drawHLine(page, y, 100, 300)
	}
	if got := c.Classify(page); got != "dense" {
		t.Errorf("Classify = %q, want dense", got)
	}
	if got := c.Classify(whitePage(400, 600)); got != geometry.Unknown {
		t.Errorf("blank Classify = %q, want unknown", got)
	}
}
