package color

import "math"

// RGB is a normalized color, 0.0-1.0 per channel. Colors compare by exact
// channel equality: two picks differing only in floating rounding are
// distinct entries.
type RGB struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
}

// New clamps each channel into [0, 1].
func New(r, g, b float64) RGB {
	return RGB{R: clamp01(r), G: clamp01(g), B: clamp01(b)}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Classification thresholds and multipliers of the response policy.
const (
	whiteFloor  = 0.9 // all channels above: near-white
	blackCeil   = 0.1 // all channels below: near-black
	chromaFloor = 0.1 // max-min below: near-gray (low chroma)

	darkMeanCeil  = 0.3
	lightMeanCeil = 0.7

	weakSatCeil     = 0.3
	strongSatFloor  = 0.7
	boostMultiplier = 1.5
	keepMultiplier  = 1.0
	calmMultiplier  = 0.8
)

// Class buckets a color for the saturation response policy.
type Class int

const (
	NearWhite Class = iota
	NearBlack
	NearGray
	Chromatic
)

func (c Class) String() string {
	switch c {
	case NearWhite:
		return "near-white"
	case NearBlack:
		return "near-black"
	case NearGray:
		return "near-gray"
	default:
		return "chromatic"
	}
}

// Classify buckets a color. Evaluated in order, first match wins, so a very
// light gray counts as near-white rather than near-gray.
func Classify(c RGB) Class {
	if c.R > whiteFloor && c.G > whiteFloor && c.B > whiteFloor {
		return NearWhite
	}
	if c.R < blackCeil && c.G < blackCeil && c.B < blackCeil {
		return NearBlack
	}
	max := math.Max(c.R, math.Max(c.G, c.B))
	min := math.Min(c.R, math.Min(c.G, c.B))
	if max-min < chromaFloor {
		return NearGray
	}
	return Chromatic
}

// PolicyMultiplier computes the corrected saturation multiplier for a color:
// near-white stays as-is, deep and weak colors are boosted to resist
// perceptual washout, strong colors are tempered.
func PolicyMultiplier(c RGB) float64 {
	switch Classify(c) {
	case NearWhite:
		return keepMultiplier
	case NearBlack:
		return boostMultiplier
	case NearGray:
		mean := (c.R + c.G + c.B) / 3
		switch {
		case mean < darkMeanCeil:
			return boostMultiplier
		case mean < lightMeanCeil:
			return keepMultiplier
		default:
			return calmMultiplier
		}
	default:
		_, s, _ := c.HSB()
		switch {
		case s < weakSatCeil:
			return boostMultiplier
		case s > strongSatFloor:
			return calmMultiplier
		default:
			return keepMultiplier
		}
	}
}

// Rendered applies a saturation multiplier to a color. Achromatic colors
// (near-white, near-black, near-gray) are returned unmodified regardless of
// the multiplier; only genuinely chromatic colors are recomposed, from the
// original hue and brightness with the saturation channel scaled and
// clamped to [0, 1].
func Rendered(c RGB, multiplier float64) RGB {
	if Classify(c) != Chromatic {
		return c
	}
	h, s, b := c.HSB()
	return FromHSB(h, clamp01(s*multiplier), b)
}

// HSB decomposes the color into hue (degrees, [0, 360)), saturation and
// brightness ([0, 1]).
func (c RGB) HSB() (h, s, b float64) {
	max := math.Max(c.R, math.Max(c.G, c.B))
	min := math.Min(c.R, math.Min(c.G, c.B))
	delta := max - min

	b = max
	if max > 0 {
		s = delta / max
	}
	if delta == 0 {
		return 0, s, b
	}

	switch max {
	case c.R:
		h = math.Mod((c.G-c.B)/delta, 6)
	case c.G:
		h = (c.B-c.R)/delta + 2
	default:
		h = (c.R-c.G)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, s, b
}

// FromHSB recomposes a color from hue (degrees), saturation and brightness.
func FromHSB(h, s, b float64) RGB {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := b * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := b - c

	var r, g, bl float64
	switch {
	case h < 60:
		r, g, bl = c, x, 0
	case h < 120:
		r, g, bl = x, c, 0
	case h < 180:
		r, g, bl = 0, c, x
	case h < 240:
		r, g, bl = 0, x, c
	case h < 300:
		r, g, bl = x, 0, c
	default:
		r, g, bl = c, 0, x
	}
	return RGB{R: r + m, G: g + m, B: bl + m}
}
