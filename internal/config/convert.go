package config

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"github.com/arcadeearth/launchsite/internal/assets"
	"github.com/arcadeearth/launchsite/internal/character"
	"github.com/arcadeearth/launchsite/internal/interaction"
)

// Options returns controller options carrying the configured tuning. The
// caller supplies the loop, mount and cache.
func (c CharacterConfig) Options() character.Options {
	return character.Options{
		MobileFPS:               c.MobileFPS,
		ReducedMotion:           c.ReducedMotion,
		ProximityThreshold:      c.ProximityThreshold,
		AutoCycleDelay:          c.AutoCycleDelay,
		AutoCycleOnVisibleDelay: c.AutoCycleOnVisibleDelay,
		GreetingCooldown:        c.GreetingCooldown,
		SleepAfter:              c.SleepAfter,
		VariantDelayMin:         c.VariantDelayMin,
		VariantDelayMax:         c.VariantDelayMax,
	}
}

// LoadOptions returns the sequence loader options.
func (c CharacterConfig) LoadOptions() character.LoadOptions {
	return character.LoadOptions{
		FolderOverrides: c.FolderOverrides,
		Strict:          c.Strict,
		MobileFPS:       c.MobileFPS,
	}
}

// Policy returns the interaction tuning. Zero fields take the policy defaults.
func (c InteractionConfig) Policy() interaction.Config {
	return interaction.Config{
		StillThreshold:  c.StillThreshold,
		LookingDelay:    c.LookingDelay,
		LookingCooldown: c.LookingCooldown,
		RapidSpeed:      c.RapidSpeed,
		RapidRequired:   c.RapidRequired,
		RapidDecay:      c.RapidDecay,
		SneezeCooldown:  c.SneezeCooldown,
		TouchHoverHold:  c.TouchHoverHold,
	}
}

// FrameSources returns the configured directories as asset sources. Sources
// without a name are named after their position.
func (a AssetsConfig) FrameSources() []assets.Source {
	out := make([]assets.Source, 0, len(a.Sources))
	for i, s := range a.Sources {
		if s.Dir == "" {
			continue
		}
		name := s.Name
		if name == "" {
			name = "source" + strconv.Itoa(i)
		}
		out = append(out, assets.DirSource(name, s.Dir, s.Priority))
	}
	return out
}

// BackgroundColor parses Background as #rrggbb.
func (w WindowConfig) BackgroundColor() (color.NRGBA, error) {
	hex := strings.TrimPrefix(w.Background, "#")
	if len(hex) != 6 {
		return color.NRGBA{}, fmt.Errorf("background %q: want #rrggbb", w.Background)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("background %q: %w", w.Background, err)
	}
	return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
