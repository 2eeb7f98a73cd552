// Command formantpad is the command-line driver for the D-Lev formant
// mapping companion: WAV analysis, one-shot and streamed pad derivations,
// preset housekeeping, and the remote pad server.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"github.com/dlev-tools/formantpad/internal/app"
	"github.com/dlev-tools/formantpad/internal/cli"
	"github.com/dlev-tools/formantpad/internal/config"
	"github.com/dlev-tools/formantpad/internal/dispatch"
	"github.com/dlev-tools/formantpad/internal/health"
	"github.com/dlev-tools/formantpad/internal/observe"
	"github.com/dlev-tools/formantpad/internal/remote"
	"github.com/dlev-tools/formantpad/pkg/device/dlin"
	"github.com/dlev-tools/formantpad/pkg/voice"
)

var version = "0.1.0"

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Analyze AnalyzeCmd `cmd:"" help:"Analyze a WAV recording and report its formant-pad mapping."`
	Apply   ApplyCmd   `cmd:"" help:"Derive one parameter set and send it to the device."`
	Track   TrackCmd   `cmd:"" help:"Stream pad coordinates from stdin to the device."`
	Capture CaptureCmd `cmd:"" help:"Dump the device's current knob state as the restore point."`
	Restore RestoreCmd `cmd:"" help:"Pump a captured base knob state back to the device."`
	Save    SaveCmd    `cmd:"" help:"Dump a preset slot to a named file."`
	Copy    CopyCmd    `cmd:"" help:"Copy a preset between two device slots."`
	Serve   ServeCmd   `cmd:"" help:"Run the remote pad server."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// Globals are the flags shared by every subcommand.
type Globals struct {
	Config   string `short:"c" default:"formantpad.yaml" help:"Path to the YAML configuration file."`
	LogLevel string `placeholder:"LEVEL" help:"Override the configured log level (debug|info|warn|error)."`
	Device   string `placeholder:"PATH" help:"Override the librarian executable."`
	Sudo     bool   `help:"Prefix librarian invocations with sudo."`
}

func main() {
	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("formantpad"),
		kong.Description("Formant-mapping control companion for the D-Lev voice synth"),
		kong.UsageOnError(),
	)
	os.Exit(run(kctx, cliArgs))
}

func run(kctx *kong.Context, cliArgs *CLI) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx, &cliArgs.Globals)
	if err != nil {
		cli.PrintError(err.Error())
		return 1
	}

	if err := kctx.Run(rt); err != nil && !errors.Is(err, context.Canceled) {
		cli.PrintError(err.Error())
		return 1
	}
	return 0
}

// ── Runtime ───────────────────────────────────────────────────────────────────

// runtime carries the loaded configuration and the lazily built device stack
// into the subcommand Run methods.
type runtime struct {
	ctx   context.Context
	flags *Globals
	cfg   *config.Config
	level *slog.LevelVar

	sess *session
}

// session bundles the device-facing stack one command drives.
type session struct {
	channel     *dlin.Channel
	dispatcher  *dispatch.Dispatcher
	app         *app.App
	minInterval time.Duration
}

// newRuntime installs the leveled logger, loads the configuration, and folds
// in the global flag overrides.
func newRuntime(ctx context.Context, flags *Globals) (*runtime, error) {
	// Install the handler before loading so the loader's own log lines use it.
	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := config.LoadOrDefault(flags.Config)
	if err != nil {
		return nil, err
	}

	if flags.LogLevel != "" {
		l := config.LogLevel(flags.LogLevel)
		if !l.IsValid() {
			return nil, fmt.Errorf("log level %q is invalid; valid values: debug, info, warn, error", flags.LogLevel)
		}
		cfg.LogLevel = l
	}
	if flags.Device != "" {
		cfg.Device.Command = flags.Device
	}
	if flags.Sudo {
		cfg.Device.UseSudo = true
	}
	level.Set(cfg.LogLevel.Level())

	return &runtime{ctx: ctx, flags: flags, cfg: cfg, level: level}, nil
}

// session builds the device stack on first use. Serve initialises telemetry
// before calling this: the dispatcher and app latch the default metrics
// instruments when they are constructed.
func (rt *runtime) session() (*session, error) {
	if rt.sess != nil {
		return rt.sess, nil
	}

	channel := dlin.New(dlin.Config{
		Executable: rt.cfg.Device.Command,
		UseSudo:    rt.cfg.Device.UseSudo,
		WorkDir:    rt.cfg.WorkDir,
		Timeout:    rt.cfg.Device.CommandTimeout(),
	})
	dispatcher, err := dispatch.New(dispatch.Config{
		Channel:     channel,
		MinInterval: rt.cfg.Throttle.MinInterval(),
	})
	if err != nil {
		return nil, err
	}
	application, err := app.New(app.Config{
		Dispatcher: dispatcher,
		Archetype:  rt.cfg.Defaults.Archetype,
		Brightness: rt.cfg.Defaults.Brightness,
		Resonance:  rt.cfg.Defaults.Resonance,
	})
	if err != nil {
		return nil, err
	}

	interval := rt.cfg.Throttle.MinInterval()
	if interval <= 0 {
		interval = dispatch.DefaultMinInterval
	}
	rt.sess = &session{
		channel:     channel,
		dispatcher:  dispatcher,
		app:         application,
		minInterval: interval,
	}
	return rt.sess, nil
}

// converge walks a full parameter set to the device through the rate gate,
// waiting out the gate between sends, so a one-shot command leaves every knob
// set instead of only the burst leader.
func (s *session) converge(ctx context.Context, p voice.Parameters) error {
	for _, u := range p.EncodeKnobs() {
		for !s.dispatcher.DispatchThrottled(ctx, u) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.minInterval):
			}
		}
	}
	return nil
}

// warnUnknownArchetype logs when a user-supplied name will resolve to the
// neutral profile, with a suggestion when a catalogued name is close.
func warnUnknownArchetype(name string) {
	if name == "" || voice.Archetype(strings.ToLower(strings.TrimSpace(name))).IsValid() {
		return
	}
	if suggestion, ok := cli.SuggestArchetype(name); ok {
		slog.Warn("unknown archetype, using neutral",
			"archetype", name,
			"did_you_mean", suggestion.String())
		return
	}
	slog.Warn("unknown archetype, using neutral", "archetype", name)
}

// ── analyze ───────────────────────────────────────────────────────────────────

// AnalyzeCmd decodes a recording, reports its spectral profile, and shows the
// parameter set the mapped coordinate would produce with the current
// defaults.
type AnalyzeCmd struct {
	File  string `arg:"" type:"existingfile" help:"WAV recording to analyze."`
	JSON  bool   `help:"Emit the analysis as JSON instead of the styled report."`
	Adopt bool   `help:"Snap the pad to the derived coordinate and send it to the device."`
}

func (c *AnalyzeCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}
	res, err := sess.app.Analyze(rt.ctx, c.File)
	if err != nil {
		return err
	}

	st := sess.app.State()
	params := voice.DeriveParameters(st.Archetype, res.Profile.Target, st.Intensities)

	if c.JSON {
		if err := writeAnalysisJSON(os.Stdout, res, st.Archetype, params); err != nil {
			return err
		}
	} else {
		cli.DisplayAnalysis(os.Stdout, c.File, res.Clip, res.Profile, st.Archetype, params)
	}

	if !c.Adopt {
		return nil
	}
	pos, err := sess.app.AdoptAnalysis(rt.ctx)
	if err != nil {
		return err
	}
	if err := sess.converge(rt.ctx, params); err != nil {
		return err
	}
	cli.PrintResult("Adopted", fmt.Sprintf("x=%.2f y=%.2f", pos.X, pos.Y))
	return nil
}

// writeAnalysisJSON emits the analysis as one indented JSON document, for
// piping into other tools.
func writeAnalysisJSON(w io.Writer, res app.Analysis, arch voice.Archetype, params voice.Parameters) error {
	doc := struct {
		Path       string     `json:"path"`
		DurationS  float64    `json:"duration_s"`
		SampleRate int        `json:"sample_rate"`
		Channels   int        `json:"channels"`
		Bits       int        `json:"bits"`
		CentroidHz float64    `json:"centroid_hz"`
		LowRatio   float64    `json:"low_ratio"`
		TargetX    float64    `json:"target_x"`
		TargetY    float64    `json:"target_y"`
		Archetype  string     `json:"archetype"`
		FormantHz  [4]float64 `json:"formant_hz"`
		Levels     [4]int     `json:"formant_levels"`
		Resonance  int        `json:"resonance"`
		Treble     int        `json:"treble"`
		Bass       int        `json:"bass"`
	}{
		Path:       res.Path,
		DurationS:  res.Clip.Duration().Seconds(),
		SampleRate: res.Clip.SampleRate,
		Channels:   res.Clip.Channels,
		Bits:       res.Clip.Bits,
		CentroidHz: res.Profile.Centroid,
		LowRatio:   res.Profile.LowRatio,
		TargetX:    res.Profile.Target.X,
		TargetY:    res.Profile.Target.Y,
		Archetype:  arch.String(),
		FormantHz:  params.Freqs,
		Levels:     params.Levels,
		Resonance:  params.Resonance,
		Treble:     params.Treble,
		Bass:       params.Bass,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// ── apply ─────────────────────────────────────────────────────────────────────

// ApplyCmd derives one parameter set for an explicit pad position and walks
// it to the device.
type ApplyCmd struct {
	X float64 `arg:"" help:"Pad horizontal position, 0 (dark) to 1 (bright)."`
	Y float64 `arg:"" help:"Pad vertical position, 0 (chest) to 1 (head)."`

	Archetype  string   `help:"Voice profile to derive with (default: configured)."`
	Brightness *float64 `help:"Brightness intensity in [0,1] (default: configured)."`
	Resonance  *float64 `help:"Resonance intensity in [0,1] (default: configured)."`
}

func (c *ApplyCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}

	name := c.Archetype
	if name == "" {
		name = rt.cfg.Defaults.Archetype
	}
	warnUnknownArchetype(name)
	arch := voice.ParseArchetype(name)

	brightness := rt.cfg.Defaults.Brightness
	if c.Brightness != nil {
		brightness = *c.Brightness
	}
	resonance := rt.cfg.Defaults.Resonance
	if c.Resonance != nil {
		resonance = *c.Resonance
	}

	params := voice.DeriveParameters(arch,
		voice.NewCoordinate(c.X, c.Y),
		voice.NewIntensities(brightness, resonance))

	cli.DisplayParameters(os.Stdout, arch, params)
	return sess.converge(rt.ctx, params)
}

// ── track ─────────────────────────────────────────────────────────────────────

// TrackCmd streams "x y" pairs from stdin through the throttled session, for
// piping an external gesture surface into the device.
type TrackCmd struct {
	Archetype  string   `help:"Voice profile to derive with (default: configured)."`
	Brightness *float64 `help:"Brightness intensity in [0,1] (default: configured)."`
	Resonance  *float64 `help:"Resonance intensity in [0,1] (default: configured)."`
}

func (c *TrackCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}

	if c.Archetype != "" {
		warnUnknownArchetype(c.Archetype)
		sess.app.SetArchetype(rt.ctx, c.Archetype)
	}
	if c.Brightness != nil {
		sess.app.SetBrightness(rt.ctx, *c.Brightness)
	}
	if c.Resonance != nil {
		sess.app.SetResonance(rt.ctx, *c.Resonance)
	}

	slog.Info("tracking pad coordinates from stdin", "format", "x y per line")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-rt.ctx.Done():
				return
			}
		}
	}()

	points := 0
	for {
		select {
		case <-rt.ctx.Done():
			slog.Info("tracking interrupted", "points", points)
			return nil
		case line, ok := <-lines:
			if !ok {
				slog.Info("gesture stream ended", "points", points)
				return nil
			}
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			var x, y float64
			if _, err := fmt.Sscanf(line, "%f %f", &x, &y); err != nil {
				slog.Warn("skipping malformed gesture line", "line", line)
				continue
			}
			sess.app.SetCoordinate(rt.ctx, x, y)
			points++
		}
	}
}

// ── capture / restore ─────────────────────────────────────────────────────────

// CaptureCmd dumps the device's current knob state into the slot-tagged base
// file, the restore point for later sessions.
type CaptureCmd struct {
	Slot *int `help:"Slot tag for the capture file (default: presets.save_slot)."`
}

func (c *CaptureCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}
	slot := rt.cfg.Presets.SaveSlot
	if c.Slot != nil {
		slot = *c.Slot
	}
	file, err := sess.app.CaptureBase(rt.ctx, slot)
	if err != nil {
		return err
	}
	cli.PrintResult("Captured", file)
	return nil
}

// RestoreCmd pumps a captured base knob state back to the device.
type RestoreCmd struct {
	Slot *int `help:"Slot tag of the capture to restore (default: presets.save_slot)."`
}

func (c *RestoreCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}
	slot := rt.cfg.Presets.SaveSlot
	if c.Slot != nil {
		slot = *c.Slot
	}
	if err := sess.app.RestoreBase(rt.ctx, slot); err != nil {
		return err
	}
	cli.PrintResult("Restored", fmt.Sprintf("base knobs for slot %d", slot))
	return nil
}

// ── save / copy ───────────────────────────────────────────────────────────────

// SaveCmd dumps a preset slot to a named file; the librarian appends its own
// preset extension.
type SaveCmd struct {
	Slot *int   `help:"Device slot to dump (default: presets.save_slot)."`
	Name string `help:"File name for the dump (default: presets.name)."`
}

func (c *SaveCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}
	slot := rt.cfg.Presets.SaveSlot
	if c.Slot != nil {
		slot = *c.Slot
	}
	name := c.Name
	if name == "" {
		name = rt.cfg.Presets.Name
	}
	if err := sess.app.SavePreset(rt.ctx, slot, name); err != nil {
		return err
	}
	cli.PrintResult("Saved", fmt.Sprintf("slot %d to %s", slot, name))
	return nil
}

// CopyCmd copies a preset between two device slots.
type CopyCmd struct {
	From *int `help:"Source slot (default: presets.copy_from)."`
	To   *int `help:"Target slot (default: presets.copy_to)."`
}

func (c *CopyCmd) Run(rt *runtime) error {
	sess, err := rt.session()
	if err != nil {
		return err
	}
	from := rt.cfg.Presets.CopyFrom
	if c.From != nil {
		from = *c.From
	}
	to := rt.cfg.Presets.CopyTo
	if c.To != nil {
		to = *c.To
	}
	if from == to {
		slog.Warn("copying a slot onto itself is a no-op", "slot", from)
	}
	if err := sess.app.CopySlot(rt.ctx, from, to); err != nil {
		return err
	}
	cli.PrintResult("Copied", fmt.Sprintf("slot %d to slot %d", from, to))
	return nil
}

// ── serve ─────────────────────────────────────────────────────────────────────

// ServeCmd runs the remote pad server until interrupted.
type ServeCmd struct{}

func (c *ServeCmd) Run(rt *runtime) error {
	// Telemetry first: the session's instruments latch the global meter
	// provider when they are created.
	shutdown, err := observe.InitProvider(rt.ctx, observe.ProviderConfig{
		ServiceVersion: version,
		EnableMetrics:  rt.cfg.Metrics.Enabled,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			slog.Warn("telemetry shutdown incomplete", "error", err)
		}
	}()

	sess, err := rt.session()
	if err != nil {
		return err
	}

	// Reload the config on file changes; settings a running server cannot
	// adopt are only flagged.
	if _, err := os.Stat(rt.flags.Config); err == nil {
		watcher, err := config.NewWatcher(rt.flags.Config, rt.applyConfigChange(sess))
		if err != nil {
			slog.Warn("config watcher not started", "error", err)
		} else {
			defer watcher.Stop()
		}
	}

	server, err := remote.New(remote.Config{
		Listen:       rt.cfg.Remote.Listen,
		App:          sess.app,
		ServeMetrics: rt.cfg.Metrics.Enabled,
		Checkers: []health.Checker{
			health.Device(sess.channel),
			health.WorkDir(rt.cfg.WorkDir),
		},
	})
	if err != nil {
		return err
	}

	printStartupSummary(rt.cfg)
	slog.Info("pad server ready, press Ctrl+C to shut down")
	return server.Run(rt.ctx)
}

// applyConfigChange returns the reload callback for the config watcher.
func (rt *runtime) applyConfigChange(sess *session) func(old, new *config.Config) {
	return func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			rt.level.Set(d.NewLogLevel.Level())
			slog.Info("log level updated", "level", d.NewLogLevel)
		}
		if d.ThrottleChanged {
			sess.dispatcher.SetMinInterval(new.Throttle.MinInterval())
			slog.Info("throttle spacing updated", "min_interval", new.Throttle.MinInterval())
		}
		if d.DefaultsChanged || d.PresetsChanged {
			slog.Info("defaults updated; they apply to future commands, not the running session")
		}
		for _, section := range d.RestartNeeded {
			slog.Warn("config change requires a restart to take effect", "section", section)
		}
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	device := cfg.Device.Command
	if cfg.Device.UseSudo {
		device = "sudo " + device
	}
	metrics := "disabled"
	if cfg.Metrics.Enabled {
		metrics = "enabled"
	}

	fmt.Println("╔════════════════════════════════════════╗")
	fmt.Println("║        formantpad startup summary      ║")
	fmt.Println("╠════════════════════════════════════════╣")
	printRow("Device", device)
	printRow("Work dir", cfg.WorkDir)
	printRow("Throttle", cfg.Throttle.MinInterval().String())
	printRow("Archetype", cfg.Defaults.Archetype)
	printRow("Intensity", fmt.Sprintf("b=%.2f r=%.2f", cfg.Defaults.Brightness, cfg.Defaults.Resonance))
	printRow("Listen", cfg.Remote.Listen)
	printRow("Metrics", metrics)
	fmt.Println("╚════════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 24 {
		value = value[:23] + "…"
	}
	fmt.Printf("║  %-10s : %-24s ║\n", key, value)
}

// ── version ───────────────────────────────────────────────────────────────────

// VersionCmd prints the version banner.
type VersionCmd struct{}

func (c *VersionCmd) Run(*runtime) error {
	cli.PrintVersion(version)
	return nil
}
