package app

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dlev-tools/formantpad/internal/dispatch"
	"github.com/dlev-tools/formantpad/pkg/device"
	"github.com/dlev-tools/formantpad/pkg/device/mock"
	"github.com/dlev-tools/formantpad/pkg/voice"
)

var errDevice = errors.New("device error")

// newTestApp wires an App to a mock channel behind a dispatcher whose gate
// stays shut after the first acceptance, so every evaluation surfaces as
// exactly one knob send.
func newTestApp(t *testing.T, ch *mock.Channel) *App {
	t.Helper()
	d, err := dispatch.New(dispatch.Config{Channel: ch, MinInterval: time.Hour})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}
	a, err := New(Config{
		Dispatcher: d,
		Archetype:  "tenor",
		Brightness: 0.7,
		Resonance:  0.5,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

// leadingKnob returns the update an evaluation of the given state sends
// first, which is the only one to pass a shut gate.
func leadingKnob(a voice.Archetype, pos voice.Coordinate, in voice.Intensities) device.KnobUpdate {
	return voice.DeriveParameters(a, pos, in).EncodeKnobs()[0]
}

func TestNew_RequiresDispatcher(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Fatal("New without dispatcher did not fail")
	}
}

func TestNew_InitialState(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	st := a.State()
	if st.Position != (voice.Coordinate{X: 0.5, Y: 0.5}) {
		t.Errorf("initial position = %+v, want pad centre", st.Position)
	}
	if st.Archetype != voice.Tenor {
		t.Errorf("archetype = %v, want %v", st.Archetype, voice.Tenor)
	}
	if st.Intensities != (voice.Intensities{Brightness: 0.7, Resonance: 0.5}) {
		t.Errorf("intensities = %+v, want the configured controls", st.Intensities)
	}
	if !st.Enabled {
		t.Error("processing not enabled initially")
	}
	if st.BaseCaptured {
		t.Error("base reported as captured before any capture")
	}
	if a.LastAnalysis() != nil {
		t.Error("analysis present before any Analyze")
	}
}

func TestSetCoordinate_SendsLeadingKnob(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	a.SetCoordinate(context.Background(), 0.8, 0.3)

	st := a.State()
	if st.Position != (voice.Coordinate{X: 0.8, Y: 0.3}) {
		t.Errorf("position = %+v, want (0.8, 0.3)", st.Position)
	}

	sent := ch.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d updates, want 1 past the shut gate", len(sent))
	}
	want := leadingKnob(st.Archetype, st.Position, st.Intensities)
	if sent[0] != want {
		t.Errorf("sent update = %+v, want %+v", sent[0], want)
	}
}

func TestSetCoordinate_ClampsToPad(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	a.SetCoordinate(context.Background(), 1.8, -0.5)

	if got := a.State().Position; got != (voice.Coordinate{X: 1, Y: 0}) {
		t.Errorf("position = %+v, want the clamped corner (1, 0)", got)
	}
}

func TestSetArchetype_UnknownFallsBackToNeutral(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	got := a.SetArchetype(context.Background(), "countertenor")
	if got != voice.Neutral {
		t.Errorf("resolved archetype = %v, want %v", got, voice.Neutral)
	}
	if st := a.State(); st.Archetype != voice.Neutral {
		t.Errorf("state archetype = %v, want %v", st.Archetype, voice.Neutral)
	}
}

func TestIntensityControlsClamp(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	a.SetBrightness(context.Background(), 1.7)
	a.SetResonance(context.Background(), -0.3)

	in := a.State().Intensities
	if in.Brightness != 1 {
		t.Errorf("brightness = %v, want clamped to 1", in.Brightness)
	}
	if in.Resonance != 0 {
		t.Errorf("resonance = %v, want clamped to 0", in.Resonance)
	}
}

func TestDisableProcessing_StopsDerivations(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	if err := a.DisableProcessing(context.Background()); err != nil {
		t.Fatalf("DisableProcessing: %v", err)
	}
	// No base was captured, so nothing is pumped back either.
	if got := len(ch.Invoked()); got != 0 {
		t.Fatalf("channel saw %d state ops, want 0", got)
	}

	a.SetCoordinate(context.Background(), 0.2, 0.9)
	a.SetBrightness(context.Background(), 0.1)

	if got := len(ch.Sent()); got != 0 {
		t.Errorf("channel saw %d sends while disabled, want 0", got)
	}
	// State still tracks so a later enable picks up where the pad is.
	if got := a.State().Position; got != (voice.Coordinate{X: 0.2, Y: 0.9}) {
		t.Errorf("position = %+v, want (0.2, 0.9)", got)
	}
}

func TestDisableProcessing_RestoresCapturedBase(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	file, err := a.CaptureBase(context.Background(), 200)
	if err != nil {
		t.Fatalf("CaptureBase: %v", err)
	}
	if err := a.DisableProcessing(context.Background()); err != nil {
		t.Fatalf("DisableProcessing: %v", err)
	}

	invoked := ch.Invoked()
	if len(invoked) != 2 {
		t.Fatalf("channel saw %d state ops, want capture then restore", len(invoked))
	}
	if want := (device.StateOp{Kind: device.PumpKnobs, File: file}); invoked[1] != want {
		t.Errorf("restore op = %+v, want %+v", invoked[1], want)
	}
}

func TestEnableProcessing_AppliesCurrentState(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	if err := a.DisableProcessing(context.Background()); err != nil {
		t.Fatalf("DisableProcessing: %v", err)
	}
	a.SetCoordinate(context.Background(), 0.9, 0.1)
	if got := len(ch.Sent()); got != 0 {
		t.Fatalf("channel saw %d sends while disabled, want 0", got)
	}

	a.EnableProcessing(context.Background())

	sent := ch.Sent()
	if len(sent) != 1 {
		t.Fatalf("sent %d updates after enable, want 1", len(sent))
	}
	st := a.State()
	want := leadingKnob(st.Archetype, st.Position, st.Intensities)
	if sent[0] != want {
		t.Errorf("sent update = %+v, want the pending position's %+v", sent[0], want)
	}
}

func TestCaptureBase_DumpsSlotTaggedFile(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	file, err := a.CaptureBase(context.Background(), 201)
	if err != nil {
		t.Fatalf("CaptureBase: %v", err)
	}
	if file != "fpad_base_knobs_slot201" {
		t.Errorf("base file = %q, want fpad_base_knobs_slot201", file)
	}

	invoked := ch.Invoked()
	if len(invoked) != 1 {
		t.Fatalf("channel saw %d state ops, want 1", len(invoked))
	}
	if want := (device.StateOp{Kind: device.DumpKnobs, File: file}); invoked[0] != want {
		t.Errorf("capture op = %+v, want %+v", invoked[0], want)
	}
	if !a.State().BaseCaptured {
		t.Error("base not reported as captured")
	}
}

func TestCaptureBase_FailedDumpLeavesNothingCaptured(t *testing.T) {
	ch := &mock.Channel{InvokeErr: errDevice}
	a := newTestApp(t, ch)

	if _, err := a.CaptureBase(context.Background(), 200); !errors.Is(err, errDevice) {
		t.Fatalf("err = %v, want the device error", err)
	}
	if a.State().BaseCaptured {
		t.Error("failed capture still marked a base as captured")
	}
}

func TestRestoreBase_PumpsSlotTaggedFile(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	// No capture in this session: restore still pumps the slot-tagged file,
	// covering captures made by an earlier process.
	if err := a.RestoreBase(context.Background(), 200); err != nil {
		t.Fatalf("RestoreBase: %v", err)
	}

	invoked := ch.Invoked()
	if len(invoked) != 1 {
		t.Fatalf("channel saw %d state ops, want 1", len(invoked))
	}
	want := device.StateOp{Kind: device.PumpKnobs, File: "fpad_base_knobs_slot200"}
	if invoked[0] != want {
		t.Errorf("restore op = %+v, want %+v", invoked[0], want)
	}
}

func TestRestoreBase_DeviceFailure(t *testing.T) {
	ch := &mock.Channel{InvokeErr: errDevice}
	a := newTestApp(t, ch)

	if err := a.RestoreBase(context.Background(), 200); !errors.Is(err, errDevice) {
		t.Fatalf("err = %v, want the device error", err)
	}
}

func TestSavePreset(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	if err := a.SavePreset(context.Background(), 42, "warm_tenor"); err != nil {
		t.Fatalf("SavePreset: %v", err)
	}

	invoked := ch.Invoked()
	if len(invoked) != 1 {
		t.Fatalf("channel saw %d state ops, want 1", len(invoked))
	}
	want := device.StateOp{Kind: device.DumpSlot, Slot: 42, File: "warm_tenor"}
	if invoked[0] != want {
		t.Errorf("save op = %+v, want %+v", invoked[0], want)
	}
}

func TestCopySlot_StagesThroughTempFile(t *testing.T) {
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	if err := a.CopySlot(context.Background(), 10, 20); err != nil {
		t.Fatalf("CopySlot: %v", err)
	}

	invoked := ch.Invoked()
	if len(invoked) != 2 {
		t.Fatalf("channel saw %d state ops, want dump then pump", len(invoked))
	}
	if want := (device.StateOp{Kind: device.DumpSlot, Slot: 10, File: tempCopyFile}); invoked[0] != want {
		t.Errorf("dump leg = %+v, want %+v", invoked[0], want)
	}
	if want := (device.StateOp{Kind: device.PumpSlot, Slot: 20, File: tempCopyFile}); invoked[1] != want {
		t.Errorf("pump leg = %+v, want %+v", invoked[1], want)
	}
}

func TestCopySlot_FailedDumpSkipsPump(t *testing.T) {
	ch := &mock.Channel{InvokeErr: errDevice}
	a := newTestApp(t, ch)

	if err := a.CopySlot(context.Background(), 10, 20); !errors.Is(err, errDevice) {
		t.Fatalf("err = %v, want the device error", err)
	}
	if got := len(ch.Invoked()); got != 1 {
		t.Errorf("channel saw %d state ops, want the dump leg only", got)
	}
}

func TestAnalyze_ComputesProfileAndRetains(t *testing.T) {
	path := writeSineWAV(t)
	a := newTestApp(t, &mock.Channel{})

	res, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Path != path {
		t.Errorf("analysis path = %q, want %q", res.Path, path)
	}
	if res.Clip.SampleRate != 8000 {
		t.Errorf("clip sample rate = %d, want 8000", res.Clip.SampleRate)
	}
	// A 440 Hz tone: the centroid sits near the tone and almost all energy
	// is below the 1 kHz band split.
	if res.Profile.Centroid < 300 || res.Profile.Centroid > 700 {
		t.Errorf("centroid = %.1f Hz, want near the 440 Hz tone", res.Profile.Centroid)
	}
	if res.Profile.LowRatio < 0.9 {
		t.Errorf("low ratio = %.3f, want > 0.9 for a sub-kHz tone", res.Profile.LowRatio)
	}

	// Analysis is retained but the pad does not move until it is adopted.
	if a.LastAnalysis() == nil {
		t.Fatal("analysis not retained")
	}
	if got := a.State().Position; got != (voice.Coordinate{X: 0.5, Y: 0.5}) {
		t.Errorf("position = %+v, want the pad centre untouched", got)
	}
}

func TestAnalyze_MissingFile(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	if _, err := a.Analyze(context.Background(), filepath.Join(t.TempDir(), "absent.wav")); err == nil {
		t.Fatal("Analyze of a missing file did not fail")
	}
	if a.LastAnalysis() != nil {
		t.Error("failed analysis was retained")
	}
}

func TestAdoptAnalysis_SnapsPadToTarget(t *testing.T) {
	path := writeSineWAV(t)
	ch := &mock.Channel{}
	a := newTestApp(t, ch)

	res, err := a.Analyze(context.Background(), path)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pos, err := a.AdoptAnalysis(context.Background())
	if err != nil {
		t.Fatalf("AdoptAnalysis: %v", err)
	}
	if pos != res.Profile.Target {
		t.Errorf("adopted position = %+v, want the analysis target %+v", pos, res.Profile.Target)
	}
	if got := a.State().Position; got != pos {
		t.Errorf("state position = %+v, want %+v", got, pos)
	}
	if got := len(ch.Sent()); got != 1 {
		t.Errorf("channel saw %d sends after adopt, want 1", got)
	}
}

func TestAdoptAnalysis_WithoutAnalysis(t *testing.T) {
	a := newTestApp(t, &mock.Channel{})

	if _, err := a.AdoptAnalysis(context.Background()); !errors.Is(err, ErrNoAnalysis) {
		t.Fatalf("err = %v, want ErrNoAnalysis", err)
	}
}

// writeSineWAV writes a quarter second of a 440 Hz tone as 16-bit mono PCM
// at 8 kHz and returns the file path.
func writeSineWAV(t *testing.T) string {
	t.Helper()

	const (
		rate = 8000
		freq = 440.0
		n    = rate / 4
	)
	payload := make([]byte, n*2)
	for i := range n {
		s := 0.5 * math.Sin(2*math.Pi*freq*float64(i)/rate)
		binary.LittleEndian.PutUint16(payload[i*2:], uint16(int16(s*32767)))
	}

	var body bytes.Buffer
	body.WriteString("fmt ")
	binary.Write(&body, binary.LittleEndian, uint32(16))
	binary.Write(&body, binary.LittleEndian, uint16(1)) // integer PCM
	binary.Write(&body, binary.LittleEndian, uint16(1)) // mono
	binary.Write(&body, binary.LittleEndian, uint32(rate))
	binary.Write(&body, binary.LittleEndian, uint32(rate*2))
	binary.Write(&body, binary.LittleEndian, uint16(2))
	binary.Write(&body, binary.LittleEndian, uint16(16))
	body.WriteString("data")
	binary.Write(&body, binary.LittleEndian, uint32(len(payload)))
	body.Write(payload)

	var file bytes.Buffer
	file.WriteString("RIFF")
	binary.Write(&file, binary.LittleEndian, uint32(4+body.Len()))
	file.WriteString("WAVE")
	file.Write(body.Bytes())

	path := filepath.Join(t.TempDir(), "tone.wav")
	if err := os.WriteFile(path, file.Bytes(), 0o644); err != nil {
		t.Fatalf("writing test WAV: %v", err)
	}
	return path
}
