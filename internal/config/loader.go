package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dlev-tools/formantpad/pkg/voice"
)

// Load reads the YAML configuration file at path and returns a validated
// [Config]. Keys absent from the file keep their [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault behaves like [Load] but falls back to [Default] when no file
// exists at path.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found, using defaults", "path", path)
		return Default(), nil
	}
	return cfg, err
}

// LoadFromReader decodes a YAML config from r on top of [Default] and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values. It returns a
// joined error listing all hard failures; questionable but workable values
// only produce warnings.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Device.Command == "" {
		errs = append(errs, errors.New("device.command is required"))
	}
	if cfg.Device.CommandTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("device.command_timeout_ms %d is negative", cfg.Device.CommandTimeoutMS))
	}

	if cfg.Throttle.MinIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("throttle.min_interval_ms %d is negative", cfg.Throttle.MinIntervalMS))
	} else if cfg.Throttle.MinIntervalMS > 0 && cfg.Throttle.MinIntervalMS < 50 {
		slog.Warn("throttle.min_interval_ms is very low; the serial link may fall behind",
			"min_interval_ms", cfg.Throttle.MinIntervalMS)
	}

	if cfg.Defaults.Brightness < 0 || cfg.Defaults.Brightness > 1 {
		errs = append(errs, fmt.Errorf("defaults.brightness %.2f is out of range [0, 1]", cfg.Defaults.Brightness))
	}
	if cfg.Defaults.Resonance < 0 || cfg.Defaults.Resonance > 1 {
		errs = append(errs, fmt.Errorf("defaults.resonance %.2f is out of range [0, 1]", cfg.Defaults.Resonance))
	}
	validateArchetype(cfg.Defaults.Archetype)

	if cfg.Presets.SaveSlot < 0 {
		errs = append(errs, fmt.Errorf("presets.save_slot %d is negative", cfg.Presets.SaveSlot))
	}
	if cfg.Presets.CopyFrom < 0 {
		errs = append(errs, fmt.Errorf("presets.copy_from %d is negative", cfg.Presets.CopyFrom))
	}
	if cfg.Presets.CopyTo < 0 {
		errs = append(errs, fmt.Errorf("presets.copy_to %d is negative", cfg.Presets.CopyTo))
	}
	if cfg.Presets.Name == "" {
		errs = append(errs, errors.New("presets.name is required"))
	}
	if cfg.Presets.CopyFrom == cfg.Presets.CopyTo {
		slog.Warn("presets.copy_from equals presets.copy_to; the default copy is a no-op",
			"slot", cfg.Presets.CopyFrom)
	}

	return errors.Join(errs...)
}

// validateArchetype warns when name does not resolve to a catalogued
// archetype. Unknown names are not an error: they fall back to the neutral
// profile at runtime.
func validateArchetype(name string) {
	if name == "" {
		return
	}
	if voice.Archetype(strings.ToLower(strings.TrimSpace(name))).IsValid() {
		return
	}
	slog.Warn("unknown archetype in defaults; it will resolve to neutral",
		"archetype", name,
		"known", voice.Archetypes(),
	)
}
