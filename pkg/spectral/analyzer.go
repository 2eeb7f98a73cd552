// Package spectral reduces a decoded waveform to the two measures the timbre
// pad understands: a spectral centroid (how bright the sound is) and the
// share of spectral energy below 1 kHz (how chest-heavy it is). Both come
// from a single Hann-windowed real-input FFT over the whole signal.
//
// The resulting Profile carries the raw measures plus the pad coordinate
// they map to, so a caller can either display the analysis or feed it
// straight into the formant mapping.
package spectral

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/dlev-tools/formantpad/pkg/voice"
)

// ErrEmptySignal is returned by Analyze when the sample slice is empty.
var ErrEmptySignal = errors.New("spectral: empty signal")

// Calibration of the measure-to-pad mapping. Centroids between the dark and
// bright bounds sweep X across the pad; low-band ratios between the head and
// chest bounds sweep Y. Everything outside clamps to the pad edge.
const (
	lowBandHz = 1000.0 // magnitude below this counts toward the low-band ratio

	centroidDarkHz   = 1500.0
	centroidBrightHz = 4000.0

	lowRatioHead  = 0.2
	lowRatioChest = 0.7
)

// Profile is the spectral summary of one waveform.
type Profile struct {
	// Centroid is the magnitude-weighted mean frequency in Hz. Zero for a
	// signal with no spectral energy.
	Centroid float64

	// LowRatio is the fraction of total spectral magnitude below 1 kHz,
	// in [0,1]. A degenerate signal reports 0.5.
	LowRatio float64

	// Target is the pad position the measures map to.
	Target voice.Coordinate
}

// Analyze computes the spectral profile of samples at the given rate.
// Samples are normalised mono in [-1,1]; decoding and channel mixdown happen
// upstream (see the audio package).
//
// A silent or otherwise energy-free signal is not an error: it yields the
// documented neutral profile (centroid 0, low ratio 0.5). Only structurally
// unusable input (no samples, nonpositive rate) fails.
func Analyze(samples []float64, sampleRate int) (Profile, error) {
	if len(samples) == 0 {
		return Profile{}, ErrEmptySignal
	}
	if sampleRate <= 0 {
		return Profile{}, fmt.Errorf("spectral: sample rate must be positive, got %d", sampleRate)
	}

	n := len(samples)
	window := hann(n)
	windowed := make([]float64, n)
	for i, s := range samples {
		windowed[i] = s * window[i]
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, windowed)

	var total, weighted, low float64
	for i, c := range coeffs {
		mag := math.Sqrt(real(c)*real(c) + imag(c)*imag(c))
		freq := float64(i) * float64(sampleRate) / float64(n)

		total += mag
		weighted += freq * mag
		if freq < lowBandHz {
			low += mag
		}
	}

	centroid := 0.0
	lowRatio := 0.5
	if total > 0 {
		centroid = weighted / total
		lowRatio = low / total
	}

	return Profile{
		Centroid: centroid,
		LowRatio: lowRatio,
		Target:   padTarget(centroid, lowRatio),
	}, nil
}

// padTarget maps the two spectral measures onto the pad. More centroid means
// further right (brighter); more low-band energy means further down (more
// chest). The zero-energy fallback lands at (0, 0.4) by construction.
func padTarget(centroid, lowRatio float64) voice.Coordinate {
	x := (centroid - centroidDarkHz) / (centroidBrightHz - centroidDarkHz)
	y := 1.0 - (lowRatio-lowRatioHead)/(lowRatioChest-lowRatioHead)
	return voice.NewCoordinate(x, y)
}

// hann returns an n-point Hann window. The degenerate single-sample window
// is all-pass.
func hann(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1.0
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}
