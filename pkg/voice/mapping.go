package voice

import "math"

// Calibration constants for the pad-to-formant mapping. Levels and tilt are
// raw knob units; the instrument interprets them on its own scales.
const (
	levelF1 = 55 // first formant level, fixed
	levelF2 = 45 // second formant level, fixed

	levelF3Base = 25.0 // third formant floor
	levelF3Span = 15.0 // third formant headroom, scaled by brightness
	levelF4Base = 20.0 // fourth formant floor
	levelF4Span = 10.0 // fourth formant headroom, scaled by brightness

	resonanceBase = 3   // resonance width at rest
	resonanceSpan = 4.0 // extra width at full energy and full control
	resonanceMin  = 3
	resonanceMax  = 7

	bassBright = 5.0 // bass tilt at the bright edge of the pad
	bassDark   = 8.0 // bass tilt at the dark edge
	trebDark   = 4.0 // treble tilt at the dark edge
	trebBright = 8.0 // treble tilt at the bright edge
)

// Default intensity control positions, used when a caller supplies
// non-finite values and as the initial slider positions.
const (
	DefaultBrightness = 0.7
	DefaultResonance  = 0.5
)

// Coordinate is a normalised position on the timbre pad. X runs dark (0) to
// bright (1), Y chest (0) to head (1).
type Coordinate struct {
	X float64
	Y float64
}

// NewCoordinate builds a Coordinate, clamping both axes to [0,1]. Non-finite
// inputs collapse to the pad centre rather than slamming either edge.
func NewCoordinate(x, y float64) Coordinate {
	return Coordinate{
		X: clamp01(sanitize(x, 0.5)),
		Y: clamp01(sanitize(y, 0.5)),
	}
}

// Intensities holds the two continuous control positions that scale the
// mapping: Brightness widens the horizontal sweep of the high formants,
// Resonance deepens the shared resonance response. Both live in [0,1].
type Intensities struct {
	Brightness float64
	Resonance  float64
}

// NewIntensities builds an Intensities, clamping both controls to [0,1].
// Non-finite inputs fall back to the default control positions.
func NewIntensities(brightness, resonance float64) Intensities {
	return Intensities{
		Brightness: clamp01(sanitize(brightness, DefaultBrightness)),
		Resonance:  clamp01(sanitize(resonance, DefaultResonance)),
	}
}

// Parameters is one complete derived preset adjustment: four formant
// frequencies with their levels, a shared resonance width, and the global
// spectral tilt pair.
type Parameters struct {
	// Freqs holds F1..F4 in Hz, index 0 = F1.
	Freqs [4]float64
	// Levels holds L1..L4 in knob units, index 0 = L1.
	Levels [4]int
	// Resonance is the shared width applied to all four formants, in [3,7].
	Resonance int
	// Treble and Bass are the oscillator page tilt values.
	Treble int
	Bass   int
}

// DeriveParameters maps a pad position to a full parameter set for the given
// archetype. Pure: identical inputs always yield identical outputs, and
// nothing is sent anywhere.
//
// The vertical axis drives F1/F2 across the archetype's low-formant ranges.
// The horizontal axis drives F3/F4, but first shrinks toward the pad centre
// as brightness decreases, so a dull setting narrows the audible sweep
// instead of shifting it. Resonance grows with the gesture's distance into
// the bright/head corner, scaled by the resonance control.
func DeriveParameters(a Archetype, pos Coordinate, in Intensities) Parameters {
	p := a.Profile()

	xShifted := clamp01((pos.X-0.5)*in.Brightness + 0.5)

	energy := 0.5*pos.X + 0.5*pos.Y
	extra := math.Round(resonanceSpan * in.Resonance * energy)
	resonance := clampInt(resonanceBase+int(extra), resonanceMin, resonanceMax)

	tiltDepth := 0.5 + 0.5*in.Brightness

	return Parameters{
		Freqs: [4]float64{
			p.F1.At(pos.Y),
			p.F2.At(pos.Y),
			p.F3.At(xShifted),
			p.F4.At(xShifted),
		},
		Levels: [4]int{
			levelF1,
			levelF2,
			int(math.Round(levelF3Base + levelF3Span*xShifted*in.Brightness)),
			int(math.Round(levelF4Base + levelF4Span*xShifted*in.Brightness)),
		},
		Resonance: resonance,
		Treble:    int(math.Round(trebDark + (trebBright-trebDark)*pos.X*tiltDepth)),
		Bass:      int(math.Round(bassBright + (bassDark-bassBright)*(1.0-pos.X)*tiltDepth)),
	}
}

// sanitize replaces NaN and ±Inf with fallback.
func sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

// clamp01 clamps v to [0,1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampInt clamps v to [lo,hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
