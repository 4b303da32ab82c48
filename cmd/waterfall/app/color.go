package app

import (
	"image/color"
	"math"
)

// ColorTheme is a power-to-color gradient
type ColorTheme string

const (
	DefaultTheme   ColorTheme = "enhanced"  // Black to blue to cyan to yellow to red
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white

	DefaultColorMapSize = 256
)

var noDataColor = color.Black

var themes = map[ColorTheme]func(float64) color.Color{
	DefaultTheme: enhanced,

	ClassicTheme: func(power float64) color.Color {
		return HSV{H: 240 - (power * 240), S: 0.9 + (power * 0.1), V: math.Pow(power, 0.7)}.RGB()
	},

	GrayscaleTheme: func(power float64) color.Color {
		v := uint8(math.Pow(power, 0.7) * 255)
		return color.RGBA{R: v, G: v, B: v, A: 0xff}
	},

	JungleTheme: func(power float64) color.Color {
		return HSV{H: 120 - (power * 60), S: 1.0, V: 0.3 + (math.Pow(power, 0.6) * 0.7)}.RGB()
	},

	ThermalTheme: func(power float64) color.Color {
		switch {
		case power < 0.33:
			return color.RGBA{R: uint8(power * 3 * 255), A: 0xff}
		case power < 0.66:
			return color.RGBA{R: 255, G: uint8((power - 0.33) * 3 * 255), A: 0xff}
		default:
			return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (power-0.66)*3) * 255), A: 0xff}
		}
	},

	MarineTheme: func(power float64) color.Color {
		return HSV{H: 240 - (power * 60), S: 1.0 - (power * 0.8), V: 0.3 + (math.Pow(power, 0.6) * 0.7)}.RGB()
	},
}

// enhanced stretches the low end of the range where most noise floor bins sit
func enhanced(power float64) color.Color {
	power = math.Max(0, math.Min(1, power))
	boosted := math.Pow(power, 0.7)

	switch {
	case power < 0.25:
		return HSV{H: 240, S: 1.0, V: math.Min(1, boosted*4)}.RGB()
	case power < 0.5:
		return HSV{H: 240 - ((power - 0.25) * 240), S: 1.0, V: math.Min(1, boosted*1.5)}.RGB()
	case power < 0.75:
		p := (power - 0.5) * 4
		return HSV{H: 180 - (p * 120), S: 1.0, V: math.Min(1, boosted*1.5)}.RGB()
	default:
		p := (power - 0.75) * 4
		return HSV{H: 60 - (p * 60), S: 1.0, V: 1.0}.RGB()
	}
}

// ColorMapper maps dB values onto a precomputed gradient
type ColorMapper struct {
	colors        []color.Color
	theme         func(float64) color.Color
	bounds        PowerBounds
	powerPerIndex float64
}

// NewColorMapper falls back to the default theme for unknown names
func NewColorMapper(theme ColorTheme, bounds PowerBounds) *ColorMapper {
	fn, ok := themes[theme]
	if !ok {
		fn = enhanced
	}

	cm := &ColorMapper{
		colors: make([]color.Color, DefaultColorMapSize),
		theme:  fn,
	}
	cm.UpdateBounds(bounds)
	return cm
}

func (cm *ColorMapper) UpdateBounds(bounds PowerBounds) {
	cm.bounds = bounds
	cm.powerPerIndex = (bounds.Max - bounds.Min) / float64(len(cm.colors)-1)

	for i := range cm.colors {
		cm.colors[i] = cm.theme(float64(i) / float64(len(cm.colors)-1))
	}
}

// Color clamps power into the bounds. NaN has no color.
func (cm *ColorMapper) Color(power float64) color.Color {
	if math.IsNaN(power) {
		return noDataColor
	}

	index := int((power - cm.bounds.Min) / cm.powerPerIndex)
	switch {
	case index < 0:
		return cm.colors[0]
	case index >= len(cm.colors):
		return cm.colors[len(cm.colors)-1]
	default:
		return cm.colors[index]
	}
}

// HSV is a color in HSV space, H in degrees [0-360], S and V in [0-1]
type HSV struct {
	H float64
	S float64
	V float64
}

func (hsv HSV) RGB() color.Color {
	if hsv.S <= 0.0 {
		v := uint8(hsv.V * 255)
		return color.RGBA{R: v, G: v, B: v, A: 0xff}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60
	i := math.Floor(h)
	f := h - i

	v := hsv.V
	p := v * (1 - hsv.S)
	q := v * (1 - hsv.S*f)
	t := v * (1 - hsv.S*(1-f))

	var r, g, b float64
	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}
