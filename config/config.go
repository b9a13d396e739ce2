// Package config loads and saves the looper configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// SlotConfig defines one sequence entry: a loop file and how it plays.
type SlotConfig struct {
	// LoopFile is the MIDI file path, relative to LoopDir unless absolute.
	LoopFile string `json:"loopFile"`
	// Bars fixes the loop length; 0 derives it from the file content.
	Bars uint64 `json:"bars,omitempty"`
	// Repeats is how many times the loop plays before the sequence
	// advances; 0 is treated as 1.
	Repeats uint32 `json:"repeats,omitempty"`
}

// Config is the main configuration structure.
type Config struct {
	// InputPort and OutputPort are matched as case-insensitive substrings
	// of the driver port names; empty matches the first available port.
	InputPort  string `json:"inputPort,omitempty"`
	OutputPort string `json:"outputPort,omitempty"`

	// OutputChannel overrides the MIDI channel of every loop event
	// (1-16, 1-indexed for readability). 0 keeps the file channels.
	OutputChannel int `json:"outputChannel,omitempty"`

	// Master selects self-generated clock instead of syncing to the input.
	Master    bool    `json:"master,omitempty"`
	MasterBPM float64 `json:"masterBpm,omitempty"`

	BeatsPerBar int `json:"beatsPerBar,omitempty"`

	// ZeroIndexedCountdown makes the countdown end at 0.0 instead of 1.1.
	ZeroIndexedCountdown bool `json:"zeroIndexedCountdown,omitempty"`

	LoopDir  string       `json:"loopDir,omitempty"`
	Sequence []SlotConfig `json:"sequence,omitempty"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		MasterBPM:   120,
		BeatsPerBar: 4,
		LoopDir:     "loops",
	}
}

// ConfigDir returns the config directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "midi-looper"), nil
}

// ConfigPath returns the full path to config.json.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config from disk, or returns defaults if not found.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return DefaultConfig(), nil
	}
	return LoadFrom(path)
}

// LoadFrom reads the config from an explicit path, filling in defaults for
// missing fields.
func LoadFrom(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	if cfg.MasterBPM <= 0 {
		cfg.MasterBPM = 120
	}
	if cfg.BeatsPerBar < 1 {
		cfg.BeatsPerBar = 4
	}
	return cfg, nil
}

// Save writes the config to disk.
func (c *Config) Save() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

// SaveTo writes the config to an explicit path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ResolveLoopPath joins a slot's loop file with LoopDir unless absolute.
func (c *Config) ResolveLoopPath(loopFile string) string {
	if filepath.IsAbs(loopFile) || c.LoopDir == "" {
		return loopFile
	}
	return filepath.Join(c.LoopDir, loopFile)
}
