package geometry

import (
	"errors"
	"testing"
)

func validProfile() Profile {
	return Profile{
		Priority: 10,
		Match: MatchRule{
			Kind:      MatchHLine,
			Band:      []float64{0.3, 0.7},
			MinSpan:   0.6,
			Threshold: 220,
		},
		Label:      Fractions{Top: 0.02, Bottom: 0.47, Left: 0.06, Right: 0.94},
		LabelQueue: "labels",
	}
}

func TestNewSetValid(t *testing.T) {
	canvas := Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}
	set, err := NewSet(canvas, "labels", map[LabelType]Profile{"dhl": validProfile()})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if len(set.Ordered()) != 1 || set.Ordered()[0] != "dhl" {
		t.Errorf("unexpected ordering: %v", set.Ordered())
	}
}

func TestOrderedByPriority(t *testing.T) {
	a := validProfile()
	a.Priority = 20
	b := validProfile()
	b.Priority = 5
	c := validProfile()
	c.Priority = 20

	set, err := NewSet(Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}, "labels",
		map[LabelType]Profile{"zeta": a, "parcel": b, "alpha": c})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	got := set.Ordered()
	want := []LabelType{"parcel", "alpha", "zeta"} // priority asc, ties by name
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestValidationErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"fraction above one", func(p *Profile) { p.Label.Right = 1.2 }},
		{"negative fraction", func(p *Profile) { p.Label.Top = -0.1 }},
		{"top not below bottom", func(p *Profile) { p.Label.Top, p.Label.Bottom = 0.5, 0.5 }},
		{"left not before right", func(p *Profile) { p.Label.Left, p.Label.Right = 0.9, 0.1 }},
		{"print_info without region", func(p *Profile) { p.PrintInfo = true; p.Info = nil }},
		{"bad info region", func(p *Profile) {
			p.PrintInfo = true
			p.InfoQueue = "documents"
			p.Info = &Fractions{Top: 0.8, Bottom: 0.2, Left: 0, Right: 1}
		}},
		{"unknown match kind", func(p *Profile) { p.Match.Kind = "barcode" }},
		{"bad band", func(p *Profile) { p.Match.Band = []float64{0.7} }},
		{"bad min_span", func(p *Profile) { p.Match.MinSpan = 0 }},
		{"bad threshold", func(p *Profile) { p.Match.Threshold = 300 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validProfile()
			tc.mutate(&p)
			_, err := NewSet(Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}, "labels", map[LabelType]Profile{"dhl": p})
			var cerr *ConfigError
			if !errors.As(err, &cerr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
		})
	}
}

func TestReservedName(t *testing.T) {
	_, err := NewSet(Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}, "labels",
		map[LabelType]Profile{Unknown: validProfile()})
	if err == nil {
		t.Fatal("expected error for reserved profile name")
	}
}

func TestNoQueueAnywhere(t *testing.T) {
	p := validProfile()
	p.LabelQueue = ""
	_, err := NewSet(Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}, "", map[LabelType]Profile{"dhl": p})
	if err == nil {
		t.Fatal("expected error when neither profile nor default queue set")
	}
}

func TestQueueFallback(t *testing.T) {
	p := validProfile()
	p.LabelQueue = ""
	p.PrintInfo = true
	p.Info = &Fractions{Top: 0.5, Bottom: 0.9, Left: 0, Right: 1}
	set, err := NewSet(Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}, "fallback", map[LabelType]Profile{"dhl": p})
	if err != nil {
		t.Fatalf("NewSet: %v", err)
	}
	if q := set.QueueFor(p, false); q != "fallback" {
		t.Errorf("label queue = %q, want fallback", q)
	}
	if q := set.QueueFor(p, true); q != "fallback" {
		t.Errorf("info queue = %q, want fallback", q)
	}
}

func TestCanvasPixelSize(t *testing.T) {
	c := Canvas{WidthIn: 4, HeightIn: 6, DPI: 300}
	w, h := c.PixelSize()
	if w != 1200 || h != 1800 {
		t.Errorf("PixelSize = %dx%d, want 1200x1800", w, h)
	}
}
