package color

import (
	"sync"

	"github.com/tmarchal/glowbooth/internal/debug"
)

// Engine memoizes per-color saturation multipliers. The first selection of
// a color computes its multiplier through the response policy; later
// selections of the exact same value reuse the stored multiplier, even
// after the user tuned the slider for a different color in between. Moving
// the slider while a color is active overwrites that color's entry.
//
// Entries are never deleted; the key space is bounded by the built-in
// palette plus incidental custom picks.
type Engine struct {
	mu        sync.Mutex
	overrides map[RGB]float64
	computes  int
}

func NewEngine() *Engine {
	return &Engine{overrides: make(map[RGB]float64)}
}

// SaturationFor returns the multiplier for a color, computing and storing
// it on first sight.
func (e *Engine) SaturationFor(c RGB) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if m, ok := e.overrides[c]; ok {
		return m
	}
	m := PolicyMultiplier(c)
	e.overrides[c] = m
	e.computes++
	debug.Verbose("Color: %v classified %s, multiplier %.2f", c, Classify(c), m)
	return m
}

// SetSaturation stores a manual override for the color, clamped to [0, 2],
// and returns the stored value. This is the only path that can diverge a
// color's multiplier from the policy-computed one.
func (e *Engine) SetSaturation(c RGB, multiplier float64) float64 {
	if multiplier < 0 {
		multiplier = 0
	}
	if multiplier > 2 {
		multiplier = 2
	}
	e.mu.Lock()
	e.overrides[c] = multiplier
	e.mu.Unlock()
	debug.Verbose("Color: manual multiplier %.2f for %v", multiplier, c)
	return multiplier
}

// Rendered applies the color's current multiplier; see Rendered.
func (e *Engine) Rendered(c RGB) RGB {
	return Rendered(c, e.SaturationFor(c))
}
