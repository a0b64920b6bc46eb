// Package config handles launchsite configuration loading and management.
package config

import (
	"time"

	"github.com/arcadeearth/launchsite/internal/character"
)

// Config holds all settings for the viewer, the tools and the signup service.
type Config struct {
	Window      WindowConfig      `yaml:"window"`
	Character   CharacterConfig   `yaml:"character"`
	Interaction InteractionConfig `yaml:"interaction"`
	Assets      AssetsConfig      `yaml:"assets"`
	Audio       AudioConfig       `yaml:"audio"`
	Signup      SignupConfig      `yaml:"signup"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// WindowConfig holds the viewer window settings.
type WindowConfig struct {
	Title      string `yaml:"title"`
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Fullscreen bool   `yaml:"fullscreen"`
	VSync      bool   `yaml:"vsync"`
	HighDPI    bool   `yaml:"high_dpi"`
	Background string `yaml:"background"` // #rrggbb
	FPSLimit   int    `yaml:"fps_limit"`
}

// CharacterConfig tunes the animation controller and sequence loading.
type CharacterConfig struct {
	Mode          string `yaml:"mode"` // auto, desktop or mobile
	CoarsePointer bool   `yaml:"coarse_pointer"`
	ReducedMotion bool   `yaml:"reduced_motion"`
	Strict        bool   `yaml:"strict"`

	// FolderOverrides maps asset folder names to state names.
	FolderOverrides map[string]character.State `yaml:"folder_overrides"`

	MobileFPS          float64 `yaml:"mobile_fps"`
	ProximityThreshold float64 `yaml:"proximity_threshold"`

	AutoCycleDelay          time.Duration `yaml:"auto_cycle_delay"`
	AutoCycleOnVisibleDelay time.Duration `yaml:"auto_cycle_on_visible_delay"`
	GreetingCooldown        time.Duration `yaml:"greeting_cooldown"`
	SleepAfter              time.Duration `yaml:"sleep_after"`
	VariantDelayMin         time.Duration `yaml:"variant_delay_min"`
	VariantDelayMax         time.Duration `yaml:"variant_delay_max"`
}

// InteractionConfig tunes pointer and touch handling.
type InteractionConfig struct {
	StillThreshold  float64       `yaml:"still_threshold"`
	LookingDelay    time.Duration `yaml:"looking_delay"`
	LookingCooldown time.Duration `yaml:"looking_cooldown"`
	RapidSpeed      float64       `yaml:"rapid_speed"`
	RapidRequired   time.Duration `yaml:"rapid_required"`
	RapidDecay      float64       `yaml:"rapid_decay"`
	SneezeCooldown  time.Duration `yaml:"sneeze_cooldown"`
	TouchHoverHold  time.Duration `yaml:"touch_hover_hold"`
}

// SourceConfig is one frame directory.
type SourceConfig struct {
	Name     string `yaml:"name"`
	Dir      string `yaml:"dir"`
	Priority int    `yaml:"priority"`
}

// AssetsConfig holds frame source settings.
type AssetsConfig struct {
	Sources        []SourceConfig `yaml:"sources"`
	Fallback       string         `yaml:"fallback"` // static image shown until ready
	Watch          bool           `yaml:"watch"`
	WatchDebounce  time.Duration  `yaml:"watch_debounce"`
	PreloadWorkers int            `yaml:"preload_workers"`
}

// AudioConfig holds cue playback settings.
type AudioConfig struct {
	Enabled       bool    `yaml:"enabled"`
	MasterVolume  float64 `yaml:"master_volume"`
	CueVolume     float64 `yaml:"cue_volume"`
	AmbientVolume float64 `yaml:"ambient_volume"`
	Muted         bool    `yaml:"muted"`
	CueDir        string  `yaml:"cue_dir"`
	Ambient       string  `yaml:"ambient"` // optional looping WAV
}

// SignupConfig holds the signup service settings.
type SignupConfig struct {
	Addr        string        `yaml:"addr"`
	StoreDir    string        `yaml:"store_dir"` // empty keeps records in memory
	SheetPath   string        `yaml:"sheet_path"`
	SiteURL     string        `yaml:"site_url"`
	From        string        `yaml:"from"`
	HookTimeout time.Duration `yaml:"hook_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Window: WindowConfig{
			Title:      "launchsite",
			Width:      480,
			Height:     640,
			Fullscreen: false,
			VSync:      true,
			HighDPI:    true,
			Background: "#f4efe6",
			FPSLimit:   60,
		},
		Character: CharacterConfig{
			Mode:                    "auto",
			MobileFPS:               character.MobileFPS,
			ProximityThreshold:      90,
			AutoCycleDelay:          12 * time.Second,
			AutoCycleOnVisibleDelay: 6 * time.Second,
			GreetingCooldown:        8 * time.Second,
			SleepAfter:              15 * time.Second,
			VariantDelayMin:         5 * time.Second,
			VariantDelayMax:         12 * time.Second,
		},
		Interaction: InteractionConfig{
			StillThreshold:  12,
			LookingDelay:    3 * time.Second,
			LookingCooldown: 4 * time.Second,
			RapidSpeed:      450,
			RapidRequired:   450 * time.Millisecond,
			RapidDecay:      0.6,
			SneezeCooldown:  5 * time.Second,
			TouchHoverHold:  2400 * time.Millisecond,
		},
		Assets: AssetsConfig{
			Sources:        []SourceConfig{{Name: "frames", Dir: "frames", Priority: 0}},
			Watch:          true,
			WatchDebounce:  300 * time.Millisecond,
			PreloadWorkers: 4,
		},
		Audio: AudioConfig{
			Enabled:       true,
			MasterVolume:  0.8,
			CueVolume:     1.0,
			AmbientVolume: 0.4,
			CueDir:        "cues",
		},
		Signup: SignupConfig{
			Addr:        "127.0.0.1:8080",
			StoreDir:    "",
			SheetPath:   "",
			SiteURL:     "http://127.0.0.1:8080",
			From:        "hello@arcade.earth",
			HookTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}
