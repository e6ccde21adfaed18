package render

import (
	"fmt"
	"math"

	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// HSL is a color as hue, saturation and lightness, each in [0, 1].
type HSL struct {
	H, S, L float64
}

// Theme maps a weight in [0, 1] to colors, font sizes and pen widths.
type Theme struct {
	Background HSL
	MinColor   HSL
	MaxColor   HSL

	FontName  string
	FontColor string
	NodeStyle string

	MinFontSize float64
	MaxFontSize float64
	MinPenWidth float64
	MaxPenWidth float64

	Gamma float64
	// Skew above 1 spends more of the color range on the heavy end, below 1
	// on the light end.
	Skew float64
}

func baseTheme() Theme {
	return Theme{
		Background:  HSL{0, 0, 1},
		MinColor:    HSL{0, 0, 0},
		MaxColor:    HSL{0, 0, 1},
		FontName:    "Arial",
		FontColor:   "white",
		NodeStyle:   "filled",
		MinFontSize: 10,
		MaxFontSize: 10,
		MinPenWidth: 0.5,
		MaxPenWidth: 4,
		Gamma:       2.2,
		Skew:        1,
	}
}

var themes = map[string]func() Theme{
	"color": func() Theme {
		t := baseTheme()
		t.MinColor = HSL{2.0 / 3.0, 0.80, 0.25}
		t.MaxColor = HSL{0, 1, 0.5}
		t.Gamma = 1
		return t
	},
	"pink": func() Theme {
		t := baseTheme()
		t.MinColor = HSL{0, 1, 0.90}
		t.MaxColor = HSL{0, 1, 0.5}
		return t
	},
	"gray": func() Theme {
		t := baseTheme()
		t.MinColor = HSL{0, 0, 0.85}
		t.MaxColor = HSL{0, 0, 0}
		return t
	},
	"bw": func() Theme {
		t := baseTheme()
		t.MinFontSize, t.MaxFontSize = 8, 24
		t.MinColor, t.MaxColor = HSL{0, 0, 0}, HSL{0, 0, 0}
		t.MinPenWidth, t.MaxPenWidth = 0.1, 8
		return t
	},
	"print": func() Theme {
		t := baseTheme()
		t.MinFontSize, t.MaxFontSize = 18, 30
		t.FontColor = "black"
		t.NodeStyle = "solid"
		t.MinColor, t.MaxColor = HSL{0, 0, 0}, HSL{0, 0, 0}
		t.MinPenWidth, t.MaxPenWidth = 0.1, 8
		return t
	},
}

const DefaultTheme = "color"

// ThemeNames lists the built in themes in sorted order.
func ThemeNames() []string {
	names := maps.Keys(themes)
	slices.Sort(names)
	return names
}

// LookupTheme returns a built in theme by name.
func LookupTheme(name string) (Theme, error) {
	if name == "" {
		name = DefaultTheme
	}
	theme, ok := themes[name]
	if !ok {
		return Theme{}, fmt.Errorf("unknown theme %q, expected one of %v", name, ThemeNames())
	}
	return theme(), nil
}

func (t Theme) BackgroundColor() colorful.Color {
	return t.hsl(t.Background)
}

// NodeColor is the fill (or outline, for unfilled styles) of a node.
func (t Theme) NodeColor(weight float64) colorful.Color {
	return t.Color(weight)
}

// NodeFontColor is the label color of a node. Filled nodes draw their label
// in the background color.
func (t Theme) NodeFontColor(weight float64) colorful.Color {
	if t.NodeStyle == "filled" {
		return t.BackgroundColor()
	}
	return t.NodeColor(weight)
}

func (t Theme) FontSize(weight float64) float64 {
	return max(weight*weight*t.MaxFontSize, t.MinFontSize)
}

func (t Theme) PenWidth(weight float64) float64 {
	return max(weight*t.MaxPenWidth, t.MinPenWidth)
}

func (t Theme) ArrowSize(weight float64) float64 {
	return 0.5 * math.Sqrt(t.PenWidth(weight))
}

// Color interpolates between MinColor and MaxColor in HSL space and applies
// the theme's gamma.
func (t Theme) Color(weight float64) colorful.Color {
	weight = min(max(weight, 0), 1)

	interpolate := func(lo, hi float64) float64 {
		if t.Skew == 1 || t.Skew <= 0 {
			return lo + weight*(hi-lo)
		}
		return lo + (hi-lo)*(math.Pow(t.Skew, weight)-1)/(t.Skew-1)
	}

	return t.hsl(HSL{
		H: interpolate(t.MinColor.H, t.MaxColor.H),
		S: interpolate(t.MinColor.S, t.MaxColor.S),
		L: interpolate(t.MinColor.L, t.MaxColor.L),
	})
}

func (t Theme) hsl(c HSL) colorful.Color {
	h := math.Mod(c.H, 1)
	if h < 0 {
		h++
	}
	rgb := colorful.Hsl(h*360, min(max(c.S, 0), 1), min(max(c.L, 0), 1))

	gamma := t.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	return colorful.Color{
		R: math.Pow(rgb.R, gamma),
		G: math.Pow(rgb.G, gamma),
		B: math.Pow(rgb.B, gamma),
	}.Clamped()
}
