package subtitles

import (
	"fmt"
	"sort"
	"strings"
)

// Style is a burned-in caption look. Colours are ASS &HAABBGGRR values.
// Sizes are fractions of the canvas height so the look holds at any
// resolution.
type Style struct {
	Name         string
	Font         string
	FontScale    float64
	MarginScale  float64
	Primary      string
	Outline      string
	Back         string
	Bold         bool
	Spacing      int
	BorderStyle  int
	OutlineWidth int
	Shadow       int
}

const DefaultStyle = "green-box"

var styles = map[string]Style{
	// Black bold text on an opaque #52b788 box.
	"green-box": {
		Name: "GreenBox", Font: "Arial", FontScale: 0.065, MarginScale: 0.12,
		Primary: "&H00000000", Outline: "&H0088B752", Back: "&H0088B752",
		Bold: true, Spacing: 2, BorderStyle: 3, OutlineWidth: 14, Shadow: 0,
	},
	"tiktok": {
		Name: "TikTok", Font: "Inter", FontScale: 0.05, MarginScale: 0.16,
		Primary: "&H00FFFFFF", Outline: "&H00000000", Back: "&H64000000",
		Bold: true, BorderStyle: 1, OutlineWidth: 6, Shadow: 2,
	},
	"yellow": {
		Name: "Yellow", Font: "Arial", FontScale: 0.055, MarginScale: 0.14,
		Primary: "&H0000FFFF", Outline: "&H00000000", Back: "&H80000000",
		Bold: true, BorderStyle: 1, OutlineWidth: 4, Shadow: 3,
	},
	"minimal": {
		Name: "Minimal", Font: "Helvetica", FontScale: 0.035, MarginScale: 0.08,
		Primary: "&H00FFFFFF", Outline: "&H00000000", Back: "&H00000000",
		BorderStyle: 1, OutlineWidth: 2, Shadow: 0,
	},
}

// LookupStyle returns the named style. Empty means DefaultStyle.
func LookupStyle(name string) (Style, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		name = DefaultStyle
	}
	s, ok := styles[name]
	if !ok {
		return Style{}, fmt.Errorf("unknown subtitle style %q (available: %s)", name, strings.Join(StyleNames(), ", "))
	}
	return s, nil
}

func StyleNames() []string {
	out := make([]string, 0, len(styles))
	for k := range styles {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// charsPerLine approximates how many glyphs fit across the canvas.
func (s Style) charsPerLine(c Canvas) int {
	fontPx := float64(c.Height) * s.FontScale
	usable := float64(c.Width) * (1 - 2*0.074)
	n := int(usable / (fontPx * 0.55))
	if n < 8 {
		n = 8
	}
	return n
}
