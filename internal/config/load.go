package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/arcadeearth/launchsite/internal/character"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught while decoding.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Character.Mode)
	if mode != "" && mode != "auto" {
		if _, err := character.ParseMode(mode); err != nil {
			return fmt.Errorf("character.mode: %w", err)
		}
	}
	if _, err := c.Window.BackgroundColor(); err != nil {
		return fmt.Errorf("window: %w", err)
	}
	for _, v := range []struct {
		name string
		val  float64
	}{
		{"audio.master_volume", c.Audio.MasterVolume},
		{"audio.cue_volume", c.Audio.CueVolume},
		{"audio.ambient_volume", c.Audio.AmbientVolume},
	} {
		if v.val < 0 || v.val > 1 {
			return fmt.Errorf("%s: %v out of range [0,1]", v.name, v.val)
		}
	}
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Launchsite")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Launchsite")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "launchsite")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "launchsite")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
