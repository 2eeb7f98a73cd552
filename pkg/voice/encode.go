package voice

import (
	"math"

	"github.com/dlev-tools/formantpad/pkg/device"
)

// Knob addressing on the D-Lev editor pages. Each formant lives on its own
// page with the same knob layout; the two tilt values live on the oscillator
// page.
var formantPages = [4]string{"0f", "1f", "2f", "3f"}

const (
	oscillatorPage = "0o"

	knobFrequency = 2 // formant pages: centre frequency
	knobLevel     = 3 // formant pages: level
	knobResonance = 6 // formant pages: resonance width
	knobTreble    = 1 // oscillator page: treble tilt
	knobBass      = 3 // oscillator page: bass tilt
)

// Frequency-to-knob encoding: the device expresses formant frequency as an
// integer in [100,3500] spanning 200..4000 Hz linearly.
const (
	hzMin      = 200.0
	hzMax      = 4000.0
	knobHzMin  = 100.0
	knobHzSpan = 3400.0
)

// knobFromHz encodes a frequency as its integer knob value. Out-of-range
// frequencies clamp to the device limits before encoding, so the result is
// always in [100,3500].
func knobFromHz(hz float64) int {
	f := hz
	if f < hzMin {
		f = hzMin
	}
	if f > hzMax {
		f = hzMax
	}
	t := (f - hzMin) / (hzMax - hzMin)
	return int(math.Round(knobHzMin + t*knobHzSpan))
}

// EncodeKnobs expands the parameter set into the fourteen knob updates one
// evaluation sends to the device: the four formant frequencies, then the
// four levels, then the shared resonance on each formant page, then treble
// and bass tilt. The order is part of the contract: under throttling only
// the leading updates of a burst reach the device.
func (p Parameters) EncodeKnobs() []device.KnobUpdate {
	updates := make([]device.KnobUpdate, 0, 14)

	for i, page := range formantPages {
		updates = append(updates, device.KnobUpdate{
			Page:  page,
			Knob:  knobFrequency,
			Value: knobFromHz(p.Freqs[i]),
		})
	}
	for i, page := range formantPages {
		updates = append(updates, device.KnobUpdate{
			Page:  page,
			Knob:  knobLevel,
			Value: p.Levels[i],
		})
	}
	for _, page := range formantPages {
		updates = append(updates, device.KnobUpdate{
			Page:  page,
			Knob:  knobResonance,
			Value: p.Resonance,
		})
	}
	updates = append(updates,
		device.KnobUpdate{Page: oscillatorPage, Knob: knobTreble, Value: p.Treble},
		device.KnobUpdate{Page: oscillatorPage, Knob: knobBass, Value: p.Bass},
	)
	return updates
}
