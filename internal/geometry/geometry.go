package geometry

import (
	"fmt"
	"image/color"
	"math"
	"sort"
)

// LabelType names a configured label template. It is a configuration key,
// not a code-level enum: adding a carrier means adding a profile entry.
type LabelType string

// Unknown is the sentinel for pages that match no configured profile.
// It is an expected outcome (cover sheets, filing documents), not an error.
const Unknown LabelType = "unknown"

// Fractions define a rectangular region as proportions of page size,
// resolution independent. Each value is in [0,1]; Top < Bottom, Left < Right.
type Fractions struct {
	Top    float64 `mapstructure:"top"`
	Bottom float64 `mapstructure:"bottom"`
	Left   float64 `mapstructure:"left"`
	Right  float64 `mapstructure:"right"`
}

// Match rule kinds evaluated by the classifier.
const (
	MatchHLine    = "hline"    // near-full-width horizontal dark line inside a vertical band
	MatchVLine    = "vline"    // long vertical dark run inside a horizontal band
	MatchInkRatio = "inkratio" // dark-pixel coverage of a region within [min,max]
)

// MatchRule is the structural signal a profile is recognized by. Thresholds
// are template-specific tuning constants and therefore live in configuration.
type MatchRule struct {
	Kind      string    `mapstructure:"kind"`
	Band      []float64 `mapstructure:"band"`      // hline: vertical band, vline: horizontal band
	Region    Fractions `mapstructure:"region"`    // inkratio only
	MinSpan   float64   `mapstructure:"min_span"`  // hline/vline: minimum run as fraction of axis
	Threshold int       `mapstructure:"threshold"` // binarization cutoff, 1..255
	MinInk    float64   `mapstructure:"min_ink"`   // inkratio bounds
	MaxInk    float64   `mapstructure:"max_ink"`
}

// Profile holds everything known about one label template: how to recognize
// it, which regions to cut, and where each region is routed.
type Profile struct {
	Priority   int        `mapstructure:"priority"`
	Match      MatchRule  `mapstructure:"match"`
	Label      Fractions  `mapstructure:"label"`
	Info       *Fractions `mapstructure:"info"`
	PrintInfo  bool       `mapstructure:"print_info"`
	LabelQueue string     `mapstructure:"label_queue"`
	InfoQueue  string     `mapstructure:"info_queue"`
}

// Canvas is the fixed output surface labels are composed onto.
type Canvas struct {
	WidthIn    float64 `mapstructure:"width_in"`
	HeightIn   float64 `mapstructure:"height_in"`
	DPI        int     `mapstructure:"dpi"`
	Background string  `mapstructure:"background"`
}

// PixelSize returns the canvas dimensions in pixels at its configured DPI.
func (c Canvas) PixelSize() (w, h int) {
	return int(math.Round(c.WidthIn * float64(c.DPI))), int(math.Round(c.HeightIn * float64(c.DPI)))
}

// BackgroundColor parses the configured fill. Supported: "white", "black",
// "#RRGGBB". Anything else falls back to white, the safe fill for print.
func (c Canvas) BackgroundColor() color.Color {
	switch c.Background {
	case "", "white":
		return color.White
	case "black":
		return color.Black
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(c.Background, "#%02x%02x%02x", &r, &g, &b); err == nil {
		return color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return color.White
}

// Set is the immutable classification + extraction configuration handed to
// the pipeline at job start. No process-wide mutable state.
type Set struct {
	Canvas       Canvas
	DefaultQueue string
	Profiles     map[LabelType]Profile

	ordered []LabelType
}

// Ordered returns label types by ascending rule priority (most specific
// first); ties break by name so classification stays deterministic.
func (s *Set) Ordered() []LabelType {
	return s.ordered
}

// QueueFor resolves the output queue for a profile region, falling back to
// the set-wide default queue.
func (s *Set) QueueFor(p Profile, info bool) string {
	q := p.LabelQueue
	if info {
		q = p.InfoQueue
	}
	if q == "" {
		q = s.DefaultQueue
	}
	return q
}

// ConfigError reports a malformed profile entry. It aborts the job before
// any page is processed; silently clamping bad fractions would mis-crop
// without any visible signal to the operator.
type ConfigError struct {
	Profile LabelType
	Field   string
	Reason  string
}

func (e *ConfigError) Error() string {
	if e.Profile == "" {
		return fmt.Sprintf("geometry config: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("geometry config: profile %q: %s: %s", e.Profile, e.Field, e.Reason)
}

// NewSet builds a validated, priority-ordered profile set.
func NewSet(canvas Canvas, defaultQueue string, profiles map[LabelType]Profile) (*Set, error) {
	s := &Set{Canvas: canvas, DefaultQueue: defaultQueue, Profiles: profiles}
	if err := s.validate(); err != nil {
		return nil, err
	}
	for name := range profiles {
		s.ordered = append(s.ordered, name)
	}
	sort.Slice(s.ordered, func(i, j int) bool {
		a, b := s.ordered[i], s.ordered[j]
		if profiles[a].Priority != profiles[b].Priority {
			return profiles[a].Priority < profiles[b].Priority
		}
		return a < b
	})
	return s, nil
}

func (s *Set) validate() error {
	if s.Canvas.WidthIn <= 0 || s.Canvas.HeightIn <= 0 || s.Canvas.DPI <= 0 {
		return &ConfigError{Field: "canvas", Reason: "width_in, height_in and dpi must be positive"}
	}
	if len(s.Profiles) == 0 {
		return &ConfigError{Field: "profiles", Reason: "no label profiles configured"}
	}
	for name, p := range s.Profiles {
		if name == Unknown {
			return &ConfigError{Profile: name, Field: "name", Reason: "reserved label type"}
		}
		if err := checkFractions(name, "label", p.Label); err != nil {
			return err
		}
		if p.PrintInfo && p.Info == nil {
			return &ConfigError{Profile: name, Field: "info", Reason: "print_info set but no info region configured"}
		}
		if p.Info != nil {
			if err := checkFractions(name, "info", *p.Info); err != nil {
				return err
			}
		}
		if p.LabelQueue == "" && s.DefaultQueue == "" {
			return &ConfigError{Profile: name, Field: "label_queue", Reason: "no output queue and no default queue"}
		}
		if p.PrintInfo && p.InfoQueue == "" && s.DefaultQueue == "" {
			return &ConfigError{Profile: name, Field: "info_queue", Reason: "no output queue and no default queue"}
		}
		if err := checkMatch(name, p.Match); err != nil {
			return err
		}
	}
	return nil
}

func checkFractions(name LabelType, field string, f Fractions) error {
	for _, v := range []float64{f.Top, f.Bottom, f.Left, f.Right} {
		if v < 0 || v > 1 {
			return &ConfigError{Profile: name, Field: field, Reason: fmt.Sprintf("fraction %v outside [0,1]", v)}
		}
	}
	if f.Top >= f.Bottom {
		return &ConfigError{Profile: name, Field: field, Reason: fmt.Sprintf("top %v must be below bottom %v", f.Top, f.Bottom)}
	}
	if f.Left >= f.Right {
		return &ConfigError{Profile: name, Field: field, Reason: fmt.Sprintf("left %v must be before right %v", f.Left, f.Right)}
	}
	return nil
}

func checkMatch(name LabelType, m MatchRule) error {
	switch m.Kind {
	case MatchHLine, MatchVLine:
		if len(m.Band) != 2 || m.Band[0] < 0 || m.Band[1] > 1 || m.Band[0] >= m.Band[1] {
			return &ConfigError{Profile: name, Field: "match.band", Reason: "band must be two ascending fractions in [0,1]"}
		}
		if m.MinSpan <= 0 || m.MinSpan > 1 {
			return &ConfigError{Profile: name, Field: "match.min_span", Reason: "min_span must be in (0,1]"}
		}
	case MatchInkRatio:
		if err := checkFractions(name, "match.region", m.Region); err != nil {
			return err
		}
		if m.MinInk < 0 || m.MaxInk > 1 || m.MinInk >= m.MaxInk {
			return &ConfigError{Profile: name, Field: "match.ink", Reason: "require 0 <= min_ink < max_ink <= 1"}
		}
	default:
		return &ConfigError{Profile: name, Field: "match.kind", Reason: fmt.Sprintf("unknown rule kind %q", m.Kind)}
	}
	if m.Threshold < 0 || m.Threshold > 255 {
		return &ConfigError{Profile: name, Field: "match.threshold", Reason: "threshold must be in [0,255]"}
	}
	return nil
}
