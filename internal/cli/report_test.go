package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/dlev-tools/formantpad/pkg/audio"
	"github.com/dlev-tools/formantpad/pkg/spectral"
	"github.com/dlev-tools/formantpad/pkg/voice"
)

func TestDisplayAnalysis_SectionsAndValues(t *testing.T) {
	clip := audio.Clip{
		Samples:    make([]float64, 8000),
		SampleRate: 8000,
		Channels:   1,
		Bits:       16,
	}
	profile := spectral.Profile{
		Centroid: 2150,
		LowRatio: 0.34,
		Target:   voice.Coordinate{X: 0.26, Y: 0.8},
	}
	params := voice.DeriveParameters(voice.Tenor, profile.Target, voice.NewIntensities(0.7, 0.5))

	var buf bytes.Buffer
	DisplayAnalysis(&buf, "/tmp/take/vowel_ah.wav", clip, profile, voice.Tenor, params)
	out := buf.String()

	for _, want := range []string{
		"ANALYSIS: vowel_ah.wav",
		"Duration:    1.0s",
		"Sample Rate: 8000 Hz",
		"Channels:    mono",
		"Bit Depth:   16-bit",
		"SPECTRUM",
		"Centroid:   2150 Hz",
		"Low Ratio:  34% of energy below 1 kHz",
		"PAD TARGET",
		"x=0.26",
		"y=0.80",
		"DERIVATION (TENOR)",
		"F1:",
		"F4:",
		"Resonance:",
		"Bass Tilt:",
		"Treble Tilt:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestDisplayParameters_ListsAllFourFormants(t *testing.T) {
	params := voice.Parameters{
		Freqs:     [4]float64{418, 964, 1989, 2566},
		Levels:    [4]int{55, 45, 29, 22},
		Resonance: 5,
		Treble:    6,
		Bass:      7,
	}

	var buf bytes.Buffer
	DisplayParameters(&buf, voice.Alto, params)
	out := buf.String()

	for _, want := range []string{
		"DERIVATION (ALTO)",
		"F1:          418 Hz, level 55",
		"F2:          964 Hz, level 45",
		"F3:         1989 Hz, level 29",
		"F4:         2566 Hz, level 22",
		"Resonance:  5 (shared)",
		"Bass Tilt:  7",
		"Treble Tilt: 6",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
}

func TestAxisGauge_MarkerPositions(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{0, "[o--------------------]"},
		{0.5, "[----------o----------]"},
		{1, "[--------------------o]"},
	}
	for _, tt := range tests {
		if got := axisGauge(tt.v); got != tt.want {
			t.Errorf("axisGauge(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestDescribeBrightness_CoversTheAxis(t *testing.T) {
	tests := []struct {
		x    float64
		want string
	}{
		{0.0, "covered"},
		{0.3, "warm"},
		{0.5, "balanced"},
		{0.7, "forward"},
		{0.95, "brassy"},
	}
	for _, tt := range tests {
		if got := describeBrightness(tt.x); got != tt.want {
			t.Errorf("describeBrightness(%v) = %q, want %q", tt.x, got, tt.want)
		}
	}
}

func TestDescribeRegister_CoversTheAxis(t *testing.T) {
	tests := []struct {
		y    float64
		want string
	}{
		{0.0, "chest register"},
		{0.3, "low mix"},
		{0.5, "mixed register"},
		{0.7, "high mix"},
		{0.95, "head register"},
	}
	for _, tt := range tests {
		if got := describeRegister(tt.y); got != tt.want {
			t.Errorf("describeRegister(%v) = %q, want %q", tt.y, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{2500 * time.Millisecond, "2.5s"},
		{90 * time.Second, "1m 30s"},
		{2 * time.Minute, "2m 0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestChannelName(t *testing.T) {
	tests := []struct {
		channels int
		want     string
	}{
		{1, "mono"},
		{2, "stereo (mixed down)"},
		{6, "6 channels (mixed down)"},
	}
	for _, tt := range tests {
		if got := channelName(tt.channels); got != tt.want {
			t.Errorf("channelName(%d) = %q, want %q", tt.channels, got, tt.want)
		}
	}
}
