package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "waterworks.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
bind_address = ":9090"

[simulation]
tick_rate = "250ms"
autostart = false

[logging]
level = "debug"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.BindAddress != ":9090" {
		t.Errorf("BindAddress = %q, want :9090", cfg.Server.BindAddress)
	}
	if cfg.Server.Name != "waterworks" {
		t.Errorf("Name = %q, want default to survive", cfg.Server.Name)
	}
	if cfg.Simulation.TickRate.Duration != 250*time.Millisecond {
		t.Errorf("TickRate = %v, want 250ms", cfg.Simulation.TickRate.Duration)
	}
	if cfg.Simulation.Autostart {
		t.Error("Autostart should be overridden to false")
	}
	if cfg.Simulation.OverheatRecovery.Duration != 5*time.Second {
		t.Errorf("OverheatRecovery = %v, want default 5s", cfg.Simulation.OverheatRecovery.Duration)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Level = %q, want debug", cfg.Logging.Level)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("Load of a missing file should fail")
	}
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := writeConfig(t, "[server\nname=")
	if _, err := Load(path); err == nil {
		t.Fatal("Load of malformed TOML should fail")
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeConfig(t, `
[simulation]
tick_rate = "fast"
`)
	if _, err := Load(path); err == nil {
		t.Fatal("Load of an unparseable duration should fail")
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.Server.BindAddress != ":8080" {
		t.Errorf("BindAddress = %q, want :8080", cfg.Server.BindAddress)
	}
	if cfg.Simulation.TickRate.Duration != time.Second {
		t.Errorf("TickRate = %v, want 1s", cfg.Simulation.TickRate.Duration)
	}
	if !cfg.Simulation.Autostart {
		t.Error("Autostart should default to true")
	}
}
