// Package app owns the live control state of one formantpad session and
// turns boundary events (pad movement, intensity changes, archetype picks,
// preset commands) into mapping evaluations and device dispatches.
//
// An [App] is safe for concurrent use: the CLI driver and the remote pad
// endpoint may feed the same instance. State changes happen under a mutex
// while the resulting knob traffic is sent outside it, so a slow serial link
// never holds up the next gesture event.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dlev-tools/formantpad/internal/dispatch"
	"github.com/dlev-tools/formantpad/internal/observe"
	"github.com/dlev-tools/formantpad/pkg/audio"
	"github.com/dlev-tools/formantpad/pkg/device"
	"github.com/dlev-tools/formantpad/pkg/spectral"
	"github.com/dlev-tools/formantpad/pkg/voice"
)

// ErrNoAnalysis is returned by [App.AdoptAnalysis] before any WAV has been
// analyzed in this session.
var ErrNoAnalysis = errors.New("app: no analysis to adopt")

// tempCopyFile is the host-side staging file a slot copy dumps to and pumps
// from. The librarian appends its own preset extension.
const tempCopyFile = "_fpad_temp_copy"

// baseFileName returns the knob-state file a base capture of slot writes.
// The name is slot-tagged so captures from different slots do not clobber
// each other; it resolves relative to the device channel's working directory.
func baseFileName(slot int) string {
	return fmt.Sprintf("fpad_base_knobs_slot%d", slot)
}

// Config holds the wiring and the initial control state for an [App].
type Config struct {
	// Dispatcher carries derived knob values and preset operations to the
	// device. Required.
	Dispatcher *dispatch.Dispatcher

	// Archetype names the initially selected voice profile. Unknown names
	// resolve to the neutral profile.
	Archetype string

	// Brightness and Resonance seed the intensity controls, clamped to [0,1].
	Brightness float64
	Resonance  float64

	// Metrics receives evaluation and analysis instrumentation.
	// Default: [observe.DefaultMetrics].
	Metrics *observe.Metrics
}

// App is the session orchestrator. Processing starts enabled with the pad
// point at the centre; the first boundary event (or an explicit
// [App.EnableProcessing]) pushes the initial derivation to the device.
type App struct {
	dispatcher *dispatch.Dispatcher
	metrics    *observe.Metrics

	mu        sync.Mutex
	pos       voice.Coordinate
	archetype voice.Archetype
	in        voice.Intensities
	enabled   bool
	baseFile  string    // captured base knob file, "" when none
	analysis  *Analysis // last analyzed WAV, nil when none
}

// Analysis bundles one analyzed recording with the spectral profile derived
// from it.
type Analysis struct {
	// Path is the WAV file that was analyzed.
	Path string

	// Clip is the decoded waveform the profile was computed from.
	Clip audio.Clip

	// Profile carries the spectral measures and the pad target they map to.
	Profile spectral.Profile
}

// State is a point-in-time snapshot of the live control state.
type State struct {
	Position     voice.Coordinate
	Archetype    voice.Archetype
	Intensities  voice.Intensities
	Enabled      bool
	BaseCaptured bool
}

// New creates an [App] seeded from cfg. A nil Dispatcher is an error; other
// zero-value fields are replaced with defaults.
func New(cfg Config) (*App, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("app: dispatcher is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observe.DefaultMetrics()
	}
	return &App{
		dispatcher: cfg.Dispatcher,
		metrics:    cfg.Metrics,
		pos:        voice.Coordinate{X: 0.5, Y: 0.5},
		archetype:  voice.ParseArchetype(cfg.Archetype),
		in:         voice.NewIntensities(cfg.Brightness, cfg.Resonance),
		enabled:    true,
	}, nil
}

// State returns a snapshot of the current control state.
func (a *App) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		Position:     a.pos,
		Archetype:    a.archetype,
		Intensities:  a.in,
		Enabled:      a.enabled,
		BaseCaptured: a.baseFile != "",
	}
}

// LastAnalysis returns the most recent analysis, or nil when no WAV has been
// analyzed yet.
func (a *App) LastAnalysis() *Analysis {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.analysis
}

// --- Boundary events ---

// SetCoordinate moves the pad point and applies the new derivation. Inputs
// clamp to the unit square.
func (a *App) SetCoordinate(ctx context.Context, x, y float64) {
	a.mu.Lock()
	a.pos = voice.NewCoordinate(x, y)
	p, send := a.stageLocked()
	a.mu.Unlock()

	a.apply(ctx, "pad", p, send)
}

// SetArchetype switches the active voice profile and applies the new
// derivation. Unknown names resolve to the neutral profile; the resolved
// archetype is returned so callers can surface the fallback.
func (a *App) SetArchetype(ctx context.Context, name string) voice.Archetype {
	resolved := voice.ParseArchetype(name)

	a.mu.Lock()
	a.archetype = resolved
	p, send := a.stageLocked()
	a.mu.Unlock()

	observe.Logger(ctx).Info("archetype selected", "archetype", resolved.String())
	a.apply(ctx, "archetype", p, send)
	return resolved
}

// SetBrightness moves the brightness intensity control and applies the new
// derivation. The value clamps to [0,1].
func (a *App) SetBrightness(ctx context.Context, v float64) {
	a.mu.Lock()
	a.in = voice.NewIntensities(v, a.in.Resonance)
	p, send := a.stageLocked()
	a.mu.Unlock()

	a.apply(ctx, "control", p, send)
}

// SetResonance moves the resonance intensity control and applies the new
// derivation. The value clamps to [0,1].
func (a *App) SetResonance(ctx context.Context, v float64) {
	a.mu.Lock()
	a.in = voice.NewIntensities(a.in.Brightness, v)
	p, send := a.stageLocked()
	a.mu.Unlock()

	a.apply(ctx, "control", p, send)
}

// EnableProcessing turns derivation and dispatch on and immediately applies
// the current state, so the device picks the session back up where the pad
// left off.
func (a *App) EnableProcessing(ctx context.Context) {
	a.mu.Lock()
	a.enabled = true
	p, send := a.stageLocked()
	a.mu.Unlock()

	observe.Logger(ctx).Info("processing enabled")
	a.apply(ctx, "enable", p, send)
}

// DisableProcessing turns derivation off. When a base knob state was
// captured it is pumped back so the instrument returns to its pre-session
// sound; without a capture there is nothing to restore and the device keeps
// whatever the last derivation left behind.
func (a *App) DisableProcessing(ctx context.Context) error {
	a.mu.Lock()
	a.enabled = false
	baseFile := a.baseFile
	a.mu.Unlock()

	if baseFile == "" {
		observe.Logger(ctx).Info("processing disabled; no base captured, nothing to restore")
		return nil
	}
	observe.Logger(ctx).Info("processing disabled, restoring base knobs", "file", baseFile)
	return a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.PumpKnobs,
		File: baseFile,
	})
}

// --- Preset operations ---

// CaptureBase dumps the device's current knob state into a slot-tagged file
// and remembers it as the restore point for [App.DisableProcessing]. The
// file name is returned for display.
func (a *App) CaptureBase(ctx context.Context, slot int) (string, error) {
	file := baseFileName(slot)
	err := a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.DumpKnobs,
		File: file,
	})
	if err != nil {
		return "", err
	}

	a.mu.Lock()
	a.baseFile = file
	a.mu.Unlock()
	return file, nil
}

// RestoreBase pumps the slot-tagged base capture back to the device without
// changing the processing flag. The capture does not need to have happened in
// this process: the librarian resolves the file from its working directory
// and fails when no capture exists for the slot.
func (a *App) RestoreBase(ctx context.Context, slot int) error {
	return a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.PumpKnobs,
		File: baseFileName(slot),
	})
}

// SavePreset dumps the preset in slot to a named file. The librarian appends
// its own extension to name.
func (a *App) SavePreset(ctx context.Context, slot int, name string) error {
	return a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.DumpSlot,
		Slot: slot,
		File: name,
	})
}

// CopySlot copies a preset between two device slots by staging it through a
// temporary host-side file: dump from the source, pump into the target. A
// failed dump skips the pump so the target slot is never half-written.
func (a *App) CopySlot(ctx context.Context, from, to int) error {
	if err := a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.DumpSlot,
		Slot: from,
		File: tempCopyFile,
	}); err != nil {
		return fmt.Errorf("app: copy slot %d -> %d, dump leg: %w", from, to, err)
	}
	if err := a.dispatcher.DispatchImmediate(ctx, device.StateOp{
		Kind: device.PumpSlot,
		Slot: to,
		File: tempCopyFile,
	}); err != nil {
		return fmt.Errorf("app: copy slot %d -> %d, pump leg: %w", from, to, err)
	}
	return nil
}

// --- WAV analysis ---

// Analyze decodes the WAV at path, computes its spectral profile, and
// retains the result as the session's analysis target. The pad position does
// not move until [App.AdoptAnalysis].
func (a *App) Analyze(ctx context.Context, path string) (Analysis, error) {
	ctx, span := observe.StartSpan(ctx, "app.Analyze",
		trace.WithAttributes(observe.Attr("path", path)))
	defer span.End()

	start := time.Now()
	clip, err := audio.LoadWAV(path)
	if err != nil {
		a.metrics.RecordAnalysis(ctx, "decode_error", time.Since(start).Seconds())
		return Analysis{}, err
	}

	profile, err := spectral.Analyze(clip.Samples, clip.SampleRate)
	if err != nil {
		a.metrics.RecordAnalysis(ctx, "analyze_error", time.Since(start).Seconds())
		return Analysis{}, err
	}
	a.metrics.RecordAnalysis(ctx, "ok", time.Since(start).Seconds())

	res := Analysis{Path: path, Clip: clip, Profile: profile}

	a.mu.Lock()
	a.analysis = &res
	a.mu.Unlock()

	observe.Logger(ctx).Info("analyzed recording",
		"path", path,
		"duration", clip.Duration().Round(time.Millisecond),
		"centroid_hz", profile.Centroid,
		"low_ratio", profile.LowRatio,
		"target_x", profile.Target.X,
		"target_y", profile.Target.Y,
	)
	return res, nil
}

// AdoptAnalysis snaps the pad point to the last analysis target and applies
// the derivation, returning the adopted coordinate.
func (a *App) AdoptAnalysis(ctx context.Context) (voice.Coordinate, error) {
	a.mu.Lock()
	if a.analysis == nil {
		a.mu.Unlock()
		return voice.Coordinate{}, ErrNoAnalysis
	}
	a.pos = a.analysis.Profile.Target
	pos := a.pos
	p, send := a.stageLocked()
	a.mu.Unlock()

	a.apply(ctx, "analysis", p, send)
	return pos, nil
}

// --- Derivation plumbing ---

// stageLocked computes the parameter set for the current state. Must be
// called with mu held; reports send=false when processing is disabled.
func (a *App) stageLocked() (voice.Parameters, bool) {
	if !a.enabled {
		return voice.Parameters{}, false
	}
	return voice.DeriveParameters(a.archetype, a.pos, a.in), true
}

// apply dispatches one staged parameter set through the throttle. Runs
// outside the state lock; under sustained gesture traffic most of a burst is
// dropped by the gate and later evaluations fill in the rest.
func (a *App) apply(ctx context.Context, trigger string, p voice.Parameters, send bool) {
	if !send {
		observe.Logger(ctx).Debug("processing disabled, not sending", "trigger", trigger)
		return
	}
	a.metrics.RecordEvaluation(ctx, trigger)
	accepted := a.dispatcher.DispatchBurst(ctx, p.EncodeKnobs())
	observe.Logger(ctx).Debug("applied derivation",
		"trigger", trigger,
		"accepted", accepted,
		"resonance", p.Resonance,
	)
}
