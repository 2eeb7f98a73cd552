// Package voice implements the formant mapping core: it turns a position on
// a two-dimensional timbre pad, a voice archetype, and two intensity controls
// into the fourteen knob values that shape a D-Lev vocal preset.
//
// The mapping is deliberately stateless. Every derivation is a pure function
// of its inputs, so the same gesture always produces the same knob values and
// the package can be exercised exhaustively without a device attached.
// Dispatching the derived values to an instrument is the caller's job; see
// the device package for the transport contract.
package voice

import "strings"

// Archetype names a vocal-range category with its own nominal formant
// frequency bounds. The set is closed: every Archetype value in circulation
// comes from the constants below, with ParseArchetype guarding the boundary.
type Archetype string

const (
	Bass     Archetype = "bass"
	Baritone Archetype = "baritone"
	Tenor    Archetype = "tenor"
	Alto     Archetype = "alto"
	Mezzo    Archetype = "mezzo"
	Soprano  Archetype = "soprano"

	// Neutral is the fallback archetype: a middle-of-the-road range that any
	// unrecognised name resolves to.
	Neutral Archetype = "neutral"
)

// Archetypes returns all valid archetypes in display order.
func Archetypes() []Archetype {
	return []Archetype{Bass, Baritone, Tenor, Alto, Mezzo, Soprano, Neutral}
}

// IsValid reports whether a is one of the declared archetypes.
func (a Archetype) IsValid() bool {
	switch a {
	case Bass, Baritone, Tenor, Alto, Mezzo, Soprano, Neutral:
		return true
	}
	return false
}

// String returns the archetype name.
func (a Archetype) String() string {
	return string(a)
}

// ParseArchetype resolves a user-supplied name to an Archetype,
// case-insensitively and ignoring surrounding whitespace. Unknown names
// resolve to Neutral; by contract that is not an error, so callers wanting
// to warn about a typo should check the name with IsValid first.
func ParseArchetype(name string) Archetype {
	a := Archetype(strings.ToLower(strings.TrimSpace(name)))
	if a.IsValid() {
		return a
	}
	return Neutral
}

// Range is a closed frequency interval in Hz.
type Range struct {
	Min float64
	Max float64
}

// At interpolates linearly across the range: At(0) = Min, At(1) = Max.
// t outside [0,1] extrapolates; callers clamp first.
func (r Range) At(t float64) float64 {
	return r.Min + (r.Max-r.Min)*t
}

// Profile holds the four formant frequency ranges of an archetype. F1 and F2
// track the pad's vertical axis, F3 and F4 the horizontal one.
type Profile struct {
	F1 Range
	F2 Range
	F3 Range
	F4 Range
}

// profiles is the compiled-in archetype catalog. The bounds are rough
// typical vowel formant ranges per voice category, pre-tamed so that a full
// pad sweep stays musical on the instrument.
var profiles = map[Archetype]Profile{
	Bass: {
		F1: Range{300, 650},
		F2: Range{700, 1200},
		F3: Range{1700, 2400},
		F4: Range{2200, 3200},
	},
	Baritone: {
		F1: Range{330, 700},
		F2: Range{800, 1350},
		F3: Range{1800, 2500},
		F4: Range{2300, 3400},
	},
	Tenor: {
		F1: Range{380, 750},
		F2: Range{900, 1500},
		F3: Range{1900, 2600},
		F4: Range{2400, 3400},
	},
	Alto: {
		F1: Range{400, 800},
		F2: Range{1000, 1700},
		F3: Range{2100, 2900},
		F4: Range{2600, 3500},
	},
	Mezzo: {
		F1: Range{420, 850},
		F2: Range{1100, 1800},
		F3: Range{2200, 3000},
		F4: Range{2700, 3600},
	},
	Soprano: {
		F1: Range{450, 900},
		F2: Range{1200, 2000},
		F3: Range{2400, 3100},
		F4: Range{2800, 3700},
	},
	Neutral: {
		F1: Range{360, 780},
		F2: Range{850, 1500},
		F3: Range{1900, 2700},
		F4: Range{2400, 3400},
	},
}

// Profile returns the formant ranges for a. Values outside the declared
// constant set fall back to the Neutral profile so the mapping engine never
// has to reason about unknown names itself.
func (a Archetype) Profile() Profile {
	if p, ok := profiles[a]; ok {
		return p
	}
	return profiles[Neutral]
}
