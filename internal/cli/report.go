package cli

import (
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/dlev-tools/formantpad/pkg/audio"
	"github.com/dlev-tools/formantpad/pkg/spectral"
	"github.com/dlev-tools/formantpad/pkg/voice"
)

// DisplayAnalysis writes the report for one analyzed recording: waveform
// facts, the spectral measures, the pad target they map to, and the formant
// parameters that target would derive under the given archetype and
// intensity controls.
func DisplayAnalysis(w io.Writer, path string, clip audio.Clip, profile spectral.Profile, arch voice.Archetype, params voice.Parameters) {
	// Header
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "ANALYSIS: %s\n", filepath.Base(path))
	fmt.Fprintln(w, strings.Repeat("=", 60))

	// File info
	fmt.Fprintf(w, "Duration:    %s\n", formatDuration(clip.Duration()))
	fmt.Fprintf(w, "Sample Rate: %d Hz\n", clip.SampleRate)
	fmt.Fprintf(w, "Channels:    %s\n", channelName(clip.Channels))
	fmt.Fprintf(w, "Bit Depth:   %d-bit\n", clip.Bits)
	fmt.Fprintln(w)

	// Spectrum section
	writeSection(w, "SPECTRUM")
	fmt.Fprintf(w, "  Centroid:   %.0f Hz (%s)\n", profile.Centroid, describeCentroid(profile.Centroid))
	fmt.Fprintf(w, "  Low Ratio:  %.0f%% of energy below 1 kHz\n", profile.LowRatio*100)
	fmt.Fprintln(w)

	// Pad target section
	writeSection(w, "PAD TARGET")
	fmt.Fprintf(w, "  Brightness  x=%.2f  %s  %s\n", profile.Target.X, axisGauge(profile.Target.X), describeBrightness(profile.Target.X))
	fmt.Fprintf(w, "  Register    y=%.2f  %s  %s\n", profile.Target.Y, axisGauge(profile.Target.Y), describeRegister(profile.Target.Y))
	fmt.Fprintln(w)

	DisplayParameters(w, arch, params)
}

// DisplayParameters writes the formant derivation table for one parameter
// set: per-formant frequency and level, the shared resonance, and the two
// oscillator tilts.
func DisplayParameters(w io.Writer, arch voice.Archetype, params voice.Parameters) {
	writeSection(w, "DERIVATION ("+strings.ToUpper(arch.String())+")")
	for i, f := range params.Freqs {
		fmt.Fprintf(w, "  F%d:         %4.0f Hz, level %d\n", i+1, f, params.Levels[i])
	}
	fmt.Fprintf(w, "  Resonance:  %d (shared)\n", params.Resonance)
	fmt.Fprintf(w, "  Bass Tilt:  %d\n", params.Bass)
	fmt.Fprintf(w, "  Treble Tilt:%2d\n", params.Treble)
}

// writeSection writes a section header for report output.
func writeSection(w io.Writer, title string) {
	fmt.Fprintln(w, title)
}

// axisGauge renders a fixed-width track with a marker at v, which must
// already be clamped to [0, 1].
func axisGauge(v float64) string {
	const cells = 21
	idx := int(math.Round(v * (cells - 1)))

	var b strings.Builder
	b.WriteByte('[')
	for i := range cells {
		if i == idx {
			b.WriteByte('o')
		} else {
			b.WriteByte('-')
		}
	}
	b.WriteByte(']')
	return b.String()
}

// describeCentroid labels a spectral centroid the way a player would hear it.
// Sung vowels typically sit between 500 and 3000 Hz; anything above points at
// strong consonant or breath energy.
func describeCentroid(hz float64) string {
	switch {
	case hz < 800:
		return "very dark"
	case hz < 1500:
		return "dark, rounded"
	case hz < 2500:
		return "balanced vowel"
	case hz < 3500:
		return "forward, present"
	default:
		return "very bright"
	}
}

// describeBrightness labels the horizontal pad axis.
func describeBrightness(x float64) string {
	switch {
	case x < 0.2:
		return "covered"
	case x < 0.4:
		return "warm"
	case x < 0.6:
		return "balanced"
	case x < 0.8:
		return "forward"
	default:
		return "brassy"
	}
}

// describeRegister labels the vertical pad axis.
func describeRegister(y float64) string {
	switch {
	case y < 0.2:
		return "chest register"
	case y < 0.45:
		return "low mix"
	case y < 0.65:
		return "mixed register"
	case y < 0.85:
		return "high mix"
	default:
		return "head register"
	}
}

// formatDuration formats a clip length as "Xm Ys" above a minute and "Y.Zs"
// below it.
func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}
	total := int(seconds)
	return fmt.Sprintf("%dm %ds", total/60, total%60)
}

// channelName names the source channel layout of a clip.
func channelName(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo (mixed down)"
	default:
		return fmt.Sprintf("%d channels (mixed down)", channels)
	}
}
