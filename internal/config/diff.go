package config

// ConfigDiff describes what changed between two configs. Settings a running
// server can adopt are tracked individually; changes to the device link, the
// listen address, and similar wiring require a restart and are only flagged.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	DefaultsChanged bool
	ThrottleChanged bool
	PresetsChanged  bool

	// RestartNeeded lists the sections whose changes cannot take effect in
	// a running process.
	RestartNeeded []string
}

// Changed reports whether the diff carries any change at all.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged ||
		d.DefaultsChanged ||
		d.ThrottleChanged ||
		d.PresetsChanged ||
		len(d.RestartNeeded) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	var d ConfigDiff

	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}
	if old.Defaults != new.Defaults {
		d.DefaultsChanged = true
	}
	if old.Throttle != new.Throttle {
		d.ThrottleChanged = true
	}
	if old.Presets != new.Presets {
		d.PresetsChanged = true
	}

	if old.Device != new.Device {
		d.RestartNeeded = append(d.RestartNeeded, "device")
	}
	if old.Remote != new.Remote {
		d.RestartNeeded = append(d.RestartNeeded, "remote")
	}
	if old.Metrics != new.Metrics {
		d.RestartNeeded = append(d.RestartNeeded, "metrics")
	}
	if old.WorkDir != new.WorkDir {
		d.RestartNeeded = append(d.RestartNeeded, "work_dir")
	}
	return d
}
