// Package config loads the server configuration from TOML, layered over
// built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration wraps time.Duration so config values can be written as
// "250ms" or "5s". The TOML decoder only fills it through
// encoding.TextUnmarshaler.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// Config is the root of the server configuration.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Simulation SimulationConfig `toml:"simulation"`
	Logging    LoggingConfig    `toml:"logging"`
}

// ServerConfig covers the process and its listeners.
type ServerConfig struct {
	Name         string `toml:"name"`
	BindAddress  string `toml:"bind_address"`
	ScenarioPath string `toml:"scenario_path"` // empty selects the built-in layout
}

// SimulationConfig covers the tick loop and the pump thermal model.
type SimulationConfig struct {
	TickRate         Duration `toml:"tick_rate"`
	OverheatRecovery Duration `toml:"overheat_recovery"`
	Autostart        bool     `toml:"autostart"`
}

// LoggingConfig selects the log level and output format.
type LoggingConfig struct {
	Level  string `toml:"level"`  // debug, info, warn, error
	Format string `toml:"format"` // console or json
}

// Load reads path over the built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg := defaults()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration, used when no file is given.
func Defaults() *Config {
	return defaults()
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Name:        "waterworks",
			BindAddress: ":8080",
		},
		Simulation: SimulationConfig{
			TickRate:         Duration{time.Second},
			OverheatRecovery: Duration{5 * time.Second},
			Autostart:        true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
