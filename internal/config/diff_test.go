package config_test

import (
	"testing"

	"github.com/dlev-tools/formantpad/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	d := config.Diff(config.Default(), config.Default())
	if d.Changed() {
		t.Errorf("expected no changes for identical configs, got: %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("log level is adoptable live, got RestartNeeded=%v", d.RestartNeeded)
	}
}

func TestDiff_ThrottleChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Throttle.MinIntervalMS = 250

	d := config.Diff(old, new)
	if !d.ThrottleChanged {
		t.Error("expected ThrottleChanged=true")
	}
	if len(d.RestartNeeded) != 0 {
		t.Errorf("throttle is adoptable live, got RestartNeeded=%v", d.RestartNeeded)
	}
}

func TestDiff_DefaultsChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Defaults.Archetype = "alto"

	d := config.Diff(old, new)
	if !d.DefaultsChanged {
		t.Error("expected DefaultsChanged=true")
	}
}

func TestDiff_PresetsChanged(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Presets.SaveSlot = 230

	d := config.Diff(old, new)
	if !d.PresetsChanged {
		t.Error("expected PresetsChanged=true")
	}
}

func TestDiff_DeviceNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Device.UseSudo = true

	d := config.Diff(old, new)
	if !containsSection(d.RestartNeeded, "device") {
		t.Errorf("expected RestartNeeded to contain device, got %v", d.RestartNeeded)
	}
}

func TestDiff_RemoteNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Remote.Listen = "0.0.0.0:9999"

	d := config.Diff(old, new)
	if !containsSection(d.RestartNeeded, "remote") {
		t.Errorf("expected RestartNeeded to contain remote, got %v", d.RestartNeeded)
	}
}

func TestDiff_MetricsNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Metrics.Enabled = false

	d := config.Diff(old, new)
	if !containsSection(d.RestartNeeded, "metrics") {
		t.Errorf("expected RestartNeeded to contain metrics, got %v", d.RestartNeeded)
	}
}

func TestDiff_WorkDirNeedsRestart(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.WorkDir = "/somewhere/else"

	d := config.Diff(old, new)
	if !containsSection(d.RestartNeeded, "work_dir") {
		t.Errorf("expected RestartNeeded to contain work_dir, got %v", d.RestartNeeded)
	}
}

func TestDiff_MultipleChanges(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.LogLevel = config.LogWarn
	new.Throttle.MinIntervalMS = 80
	new.Device.Command = "/opt/dlev/d-lin"
	new.Remote.Listen = ":9100"

	d := config.Diff(old, new)
	if !d.Changed() {
		t.Fatal("expected Changed()=true")
	}
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if !d.ThrottleChanged {
		t.Error("expected ThrottleChanged=true")
	}
	if len(d.RestartNeeded) != 2 {
		t.Errorf("expected 2 restart sections, got %v", d.RestartNeeded)
	}
	if !containsSection(d.RestartNeeded, "device") || !containsSection(d.RestartNeeded, "remote") {
		t.Errorf("expected device and remote in RestartNeeded, got %v", d.RestartNeeded)
	}
}

func containsSection(sections []string, name string) bool {
	for _, s := range sections {
		if s == name {
			return true
		}
	}
	return false
}
