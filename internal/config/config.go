// Package config persists engine and output settings as a JSON file.
// Load writes the defaults on first run so users always have a file to
// edit, and Watch re-applies edits while the program runs.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"seqsynth/internal/synth"
)

// Config is the on-disk shape of the settings file. Fields missing from
// the file keep their default values.
type Config struct {
	SampleRate   int     `json:"sampleRate"`
	AudioDriver  string  `json:"audioDriver"`
	MasterVolume float64 `json:"masterVolume"`
	Synth        Synth   `json:"synth"`
}

// Synth mirrors synth.Params with the waveform spelled out by name.
type Synth struct {
	Waveform     string  `json:"waveform"`
	MaxVoices    int     `json:"maxVoices"`
	AttackMs     float64 `json:"attackMs"`
	DecayMs      float64 `json:"decayMs"`
	SustainLevel float64 `json:"sustainLevel"`
	ReleaseMs    float64 `json:"releaseMs"`
}

// Default returns the settings written on first run.
func Default() Config {
	p := synth.DefaultParams()
	return Config{
		SampleRate:   48000,
		AudioDriver:  "ebiten",
		MasterVolume: 1,
		Synth: Synth{
			Waveform:     p.Waveform.String(),
			MaxVoices:    p.MaxVoices,
			AttackMs:     p.AttackMs,
			DecayMs:      p.DecayMs,
			SustainLevel: p.SustainLevel,
			ReleaseMs:    p.ReleaseMs,
		},
	}
}

// DefaultPath is the per-user config location, e.g.
// ~/.config/seqsynth/config.json on Linux.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "seqsynth", "config.json"), nil
}

// Params converts the synth section, rejecting unknown waveform names.
func (s Synth) Params() (synth.Params, error) {
	w, err := synth.ParseWaveform(s.Waveform)
	if err != nil {
		return synth.Params{}, err
	}
	p := synth.Params{
		MaxVoices:    s.MaxVoices,
		Waveform:     w,
		AttackMs:     s.AttackMs,
		DecayMs:      s.DecayMs,
		SustainLevel: s.SustainLevel,
		ReleaseMs:    s.ReleaseMs,
	}
	if p.MaxVoices < 1 {
		p.MaxVoices = synth.DefaultParams().MaxVoices
	}
	return p, nil
}

// Load reads the config at path. A missing file is not an error: the
// defaults are written there and returned.
func Load(path string) (Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := Default()
		if err := Save(path, cfg); err != nil {
			return Config{}, err
		}
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	// Unmarshal over the defaults so absent keys keep them.
	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func (c *Config) normalize() {
	if c.SampleRate <= 0 {
		c.SampleRate = Default().SampleRate
	}
	if c.MasterVolume < 0 {
		c.MasterVolume = 0
	}
	if c.MasterVolume > 1 {
		c.MasterVolume = 1
	}
}
