package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/arcadeearth/launchsite/internal/character"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Window.Width != 480 {
		t.Errorf("expected width 480, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 640 {
		t.Errorf("expected height 640, got %d", cfg.Window.Height)
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync to be true by default")
	}

	if cfg.Character.Mode != "auto" {
		t.Errorf("expected mode auto, got %s", cfg.Character.Mode)
	}
	if cfg.Character.SleepAfter != 15*time.Second {
		t.Errorf("expected sleep after 15s, got %v", cfg.Character.SleepAfter)
	}

	if cfg.Interaction.RapidSpeed != 450 {
		t.Errorf("expected rapid speed 450, got %v", cfg.Interaction.RapidSpeed)
	}
	if cfg.Interaction.TouchHoverHold != 2400*time.Millisecond {
		t.Errorf("expected touch hover hold 2.4s, got %v", cfg.Interaction.TouchHoverHold)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected defaults to validate, got %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	yamlContent := `
window:
  width: 720
  height: 960
  fullscreen: true
  background: "#000000"

character:
  mode: mobile
  strict: true
  sleep_after: 20s
  folder_overrides:
    Party: celebrate
    Hi: wave

interaction:
  looking_delay: 1500ms
  rapid_speed: 600

assets:
  sources:
    - name: base
      dir: /srv/frames
    - name: seasonal
      dir: /srv/winter
      priority: 2
  watch: false

audio:
  muted: true
  cue_volume: 0.5

signup:
  addr: ":9000"
  store_dir: /var/lib/launchsite

logging:
  level: "debug"
  log_file: "launchsite.log"
`

	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 720 || cfg.Window.Height != 960 {
		t.Errorf("expected 720x960, got %dx%d", cfg.Window.Width, cfg.Window.Height)
	}
	if !cfg.Window.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if !cfg.Window.VSync {
		t.Error("expected vsync default to survive a partial file")
	}

	if cfg.Character.Mode != "mobile" {
		t.Errorf("expected mode mobile, got %s", cfg.Character.Mode)
	}
	if cfg.Character.SleepAfter != 20*time.Second {
		t.Errorf("expected sleep after 20s, got %v", cfg.Character.SleepAfter)
	}
	if got := cfg.Character.FolderOverrides["Party"]; got != character.Celebrate {
		t.Errorf("expected Party -> celebrate, got %v", got)
	}
	if got := cfg.Character.FolderOverrides["Hi"]; got != character.Wave {
		t.Errorf("expected Hi -> wave, got %v", got)
	}

	if cfg.Interaction.LookingDelay != 1500*time.Millisecond {
		t.Errorf("expected looking delay 1.5s, got %v", cfg.Interaction.LookingDelay)
	}
	if cfg.Interaction.SneezeCooldown != 5*time.Second {
		t.Errorf("expected default sneeze cooldown, got %v", cfg.Interaction.SneezeCooldown)
	}

	if len(cfg.Assets.Sources) != 2 || cfg.Assets.Sources[1].Priority != 2 {
		t.Errorf("expected two sources with seasonal at priority 2, got %+v", cfg.Assets.Sources)
	}
	if cfg.Assets.Watch {
		t.Error("expected watch to be false")
	}

	if !cfg.Audio.Muted || cfg.Audio.CueVolume != 0.5 {
		t.Errorf("expected muted audio at cue volume 0.5, got %+v", cfg.Audio)
	}
	if cfg.Signup.Addr != ":9000" {
		t.Errorf("expected addr :9000, got %s", cfg.Signup.Addr)
	}
	if cfg.Logging.LogFile != "launchsite.log" {
		t.Errorf("expected log file 'launchsite.log', got %s", cfg.Logging.LogFile)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad syntax", "window:\n  width: not a number\n  invalid syntax here\n"},
		{"bad duration", "character:\n  sleep_after: soon\n"},
		{"unknown state", "character:\n  folder_overrides:\n    Party: dance\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "invalid.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write test config: %v", err)
			}

			if err := loadFromFile(Default(), configPath); err == nil {
				t.Error("expected error loading invalid config")
			}
		})
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	err := loadFromFile(Default(), filepath.Join(t.TempDir(), "nope.yaml"))
	if !os.IsNotExist(err) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"desktop mode", func(c *Config) { c.Character.Mode = "Desktop" }, ""},
		{"unknown mode", func(c *Config) { c.Character.Mode = "tablet" }, "character.mode"},
		{"bad background", func(c *Config) { c.Window.Background = "red" }, "window"},
		{"volume too loud", func(c *Config) { c.Audio.CueVolume = 1.5 }, "audio.cue_volume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Character.FolderOverrides = map[string]character.State{"Party": character.Celebrate}
	cfg.Interaction.RapidRequired = 300 * time.Millisecond
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if !strings.Contains(string(data), "rapid_required: 300ms") {
		t.Errorf("expected durations written as strings, got:\n%s", data)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("loading saved config: %v", err)
	}
	if loaded.Interaction.RapidRequired != 300*time.Millisecond {
		t.Errorf("expected 300ms, got %v", loaded.Interaction.RapidRequired)
	}
	if loaded.Character.FolderOverrides["Party"] != character.Celebrate {
		t.Errorf("expected override to survive, got %v", loaded.Character.FolderOverrides)
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
	if !filepath.IsAbs(dir) {
		t.Errorf("ConfigDir should return absolute path, got %s", dir)
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Chdir(tmpDir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmpDir, "xdg"))

	if path := findConfigFile(); path != "" {
		t.Errorf("expected empty path when no config exists, got %s", path)
	}

	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("window:\n  width: 800\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if path := findConfigFile(); path == "" {
		t.Error("expected to find config.yaml in current directory")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Character.FolderOverrides = map[string]character.State{"Party": character.Celebrate}
	cfg.Character.Strict = true

	opts := cfg.Character.Options()
	if opts.SleepAfter != 15*time.Second || opts.ProximityThreshold != 90 {
		t.Errorf("expected controller tuning to carry over, got %+v", opts)
	}

	load := cfg.Character.LoadOptions()
	if !load.Strict || load.FolderOverrides["Party"] != character.Celebrate {
		t.Errorf("expected loader options to carry over, got %+v", load)
	}

	policy := cfg.Interaction.Policy()
	if policy.LookingCooldown != 4*time.Second || policy.RapidDecay != 0.6 {
		t.Errorf("expected interaction tuning to carry over, got %+v", policy)
	}

	cfg.Assets.Sources = []SourceConfig{{Dir: "a"}, {Name: "b"}, {Name: "c", Dir: "c", Priority: 3}}
	sources := cfg.Assets.FrameSources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "source0" || sources[1].Priority != 3 {
		t.Errorf("unexpected sources %+v", sources)
	}

	bg, err := cfg.Window.BackgroundColor()
	if err != nil {
		t.Fatalf("BackgroundColor: %v", err)
	}
	if bg != (color.NRGBA{0xf4, 0xef, 0xe6, 0xff}) {
		t.Errorf("expected #f4efe6, got %v", bg)
	}
}

func TestApplyFlags(t *testing.T) {
	tests := []struct {
		name     string
		setup    func()
		verify   func(*Config)
		teardown func()
	}{
		{
			name:  "debug flag",
			setup: func() { *flagDebug = true },
			verify: func(cfg *Config) {
				if cfg.Logging.Level != "debug" {
					t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
				}
			},
			teardown: func() { *flagDebug = false },
		},
		{
			name:  "frames flag",
			setup: func() { *flagFrames = "/tmp/frames" },
			verify: func(cfg *Config) {
				if len(cfg.Assets.Sources) != 1 || cfg.Assets.Sources[0].Dir != "/tmp/frames" {
					t.Errorf("expected single frames source, got %+v", cfg.Assets.Sources)
				}
			},
			teardown: func() { *flagFrames = "" },
		},
		{
			name:  "mode flag",
			setup: func() { *flagMode = "mobile" },
			verify: func(cfg *Config) {
				if cfg.Character.Mode != "mobile" {
					t.Errorf("expected mode mobile, got %s", cfg.Character.Mode)
				}
			},
			teardown: func() { *flagMode = "" },
		},
		{
			name:  "addr flag",
			setup: func() { *flagAddr = ":7000" },
			verify: func(cfg *Config) {
				if cfg.Signup.Addr != ":7000" {
					t.Errorf("expected addr :7000, got %s", cfg.Signup.Addr)
				}
			},
			teardown: func() { *flagAddr = "" },
		},
		{
			name:  "fullscreen flag",
			setup: func() { *flagFullscreen = true },
			verify: func(cfg *Config) {
				if !cfg.Window.Fullscreen {
					t.Error("expected fullscreen to be true with fullscreen flag")
				}
			},
			teardown: func() { *flagFullscreen = false },
		},
		{
			name: "width and height flags",
			setup: func() {
				*flagWidth = 1080
				*flagHeight = 1920
			},
			verify: func(cfg *Config) {
				if cfg.Window.Width != 1080 || cfg.Window.Height != 1920 {
					t.Errorf("expected 1080x1920, got %dx%d", cfg.Window.Width, cfg.Window.Height)
				}
			},
			teardown: func() {
				*flagWidth = 0
				*flagHeight = 0
			},
		},
		{
			name:  "mute flag",
			setup: func() { *flagMute = true },
			verify: func(cfg *Config) {
				if !cfg.Audio.Muted {
					t.Error("expected audio to be muted")
				}
			},
			teardown: func() { *flagMute = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			defer tt.teardown()

			cfg := Default()
			applyFlags(cfg)
			tt.verify(cfg)
		})
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
window:
  width: 600
  height: 900
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 720
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Window.Width != 720 {
		t.Errorf("expected width 720 from flag, got %d", cfg.Window.Width)
	}
	if cfg.Window.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Window.Height)
	}
}
