// Package config provides the configuration schema, loader, and file watcher
// for the formantpad tools.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to the corresponding slog.Level. Unrecognised values map
// to info.
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for the formantpad tools.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader];
// keys absent from the file keep the values from [Default].
type Config struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// WorkDir is the directory state files (captured base knobs, preset
	// dumps, slot-copy temporaries) are written to.
	WorkDir string `yaml:"work_dir"`

	Device   DeviceConfig   `yaml:"device"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Defaults DefaultsConfig `yaml:"defaults"`
	Presets  PresetsConfig  `yaml:"presets"`
	Remote   RemoteConfig   `yaml:"remote"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// DeviceConfig describes how to reach the control utility that talks to the
// instrument over its serial link.
type DeviceConfig struct {
	// Command is the control executable, looked up on PATH unless absolute.
	Command string `yaml:"command"`

	// UseSudo prefixes every invocation with sudo, for setups where the
	// serial device node requires elevated access.
	UseSudo bool `yaml:"use_sudo"`

	// CommandTimeoutMS bounds a single invocation, in milliseconds.
	// 0 keeps the channel's built-in default.
	CommandTimeoutMS int `yaml:"command_timeout_ms"`
}

// CommandTimeout returns the invocation timeout as a duration.
func (d DeviceConfig) CommandTimeout() time.Duration {
	return time.Duration(d.CommandTimeoutMS) * time.Millisecond
}

// ThrottleConfig tunes the rate gate in front of knob traffic.
type ThrottleConfig struct {
	// MinIntervalMS is the minimum spacing between accepted knob updates,
	// in milliseconds. 0 keeps the dispatcher's built-in default.
	MinIntervalMS int `yaml:"min_interval_ms"`
}

// MinInterval returns the spacing as a duration.
func (t ThrottleConfig) MinInterval() time.Duration {
	return time.Duration(t.MinIntervalMS) * time.Millisecond
}

// DefaultsConfig seeds the live formant state on startup.
type DefaultsConfig struct {
	// Archetype is the voice profile active before the user picks one.
	// Unknown names resolve to the neutral profile at runtime.
	Archetype string `yaml:"archetype"`

	// Brightness is the initial brightness intensity in [0, 1].
	Brightness float64 `yaml:"brightness"`

	// Resonance is the initial resonance intensity in [0, 1].
	Resonance float64 `yaml:"resonance"`
}

// PresetsConfig holds the default targets for preset operations.
type PresetsConfig struct {
	// SaveSlot is the device slot presets are saved to.
	SaveSlot int `yaml:"save_slot"`

	// CopyFrom and CopyTo are the default endpoints of a slot copy.
	CopyFrom int `yaml:"copy_from"`
	CopyTo   int `yaml:"copy_to"`

	// Name is the base file name preset dumps are written under.
	Name string `yaml:"name"`
}

// RemoteConfig configures the remote pad server.
type RemoteConfig struct {
	// Listen is the TCP address the server binds (e.g., "127.0.0.1:8732").
	Listen string `yaml:"listen"`
}

// MetricsConfig controls the Prometheus endpoint of the remote pad server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when no file is present. Loading
// decodes on top of these values, so explicit zero values in a file survive.
func Default() *Config {
	return &Config{
		LogLevel: LogInfo,
		WorkDir:  ".",
		Device: DeviceConfig{
			Command:          "d-lin",
			CommandTimeoutMS: 5000,
		},
		Throttle: ThrottleConfig{MinIntervalMS: 150},
		Defaults: DefaultsConfig{
			Archetype:  "tenor",
			Brightness: 0.7,
			Resonance:  0.5,
		},
		Presets: PresetsConfig{
			SaveSlot: 200,
			CopyFrom: 200,
			CopyTo:   201,
			Name:     "fpad_preset",
		},
		Remote:  RemoteConfig{Listen: "127.0.0.1:8732"},
		Metrics: MetricsConfig{Enabled: true},
	}
}
