// Package viewer hosts the character in an SDL window: it owns the window,
// the event loop and the asset generation the character is mounted from.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sqweek/dialog"
	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/assets"
	"github.com/arcadeearth/launchsite/internal/character"
	"github.com/arcadeearth/launchsite/internal/config"
	"github.com/arcadeearth/launchsite/internal/engine/audio"
	"github.com/arcadeearth/launchsite/internal/engine/input"
	"github.com/arcadeearth/launchsite/internal/engine/renderer"
	"github.com/arcadeearth/launchsite/internal/engine/sprite"
	"github.com/arcadeearth/launchsite/internal/engine/window"
	"github.com/arcadeearth/launchsite/internal/mascot"
	"github.com/arcadeearth/launchsite/internal/preload"
	"github.com/arcadeearth/launchsite/internal/sched"
	geom "github.com/arcadeearth/launchsite/pkg/math"
)

// Viewer is the desktop host of one character.
type Viewer struct {
	cfg *config.Config
	log *zap.Logger

	running  bool
	window   *window.Window
	renderer *renderer.Renderer
	input    *input.Input
	sprite   *sprite.Sprite
	audio    *audio.Manager
	router   *Router

	loop   *sched.Loop
	assets *assets.Manager
	cache  *preload.Cache
	gen    int
	inst   *mascot.Instance

	title string
}

// New creates the window and the character host. The character itself is
// mounted by Run.
func New(cfg *config.Config, log *zap.Logger) (*Viewer, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("initializing viewer",
		zap.String("title", cfg.Window.Title),
		zap.Int("width", cfg.Window.Width),
		zap.Int("height", cfg.Window.Height),
	)

	bg, err := cfg.Window.BackgroundColor()
	if err != nil {
		return nil, err
	}

	v := &Viewer{
		cfg:   cfg,
		log:   log,
		loop:  sched.New(sched.RealClock{}),
		title: cfg.Window.Title,
	}

	v.window, err = window.New(window.Config{
		Title:      cfg.Window.Title,
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
		HighDPI:    cfg.Window.HighDPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create window: %w", err)
	}

	w, h := v.window.GetSize()
	v.renderer, err = renderer.New(v.window.Renderer(), renderer.Config{Width: w, Height: h, Background: bg})
	if err != nil {
		v.window.Close()
		return nil, fmt.Errorf("failed to create renderer: %w", err)
	}
	v.renderer.MatchWindow(w, h)

	v.input = input.New(w, h)
	v.sprite = sprite.New(v.renderer.SDL(), log.Named("sprite"))
	v.sprite.SetRegion(Region(w, h))
	v.sprite.OnLabel(func(character.State) { v.updateTitle() })
	if cfg.Assets.Fallback != "" {
		if err := v.loadFallback(cfg.Assets.Fallback); err != nil {
			log.Warn("fallback image unavailable", zap.Error(err))
		}
	}

	v.audio = v.setupAudio()

	v.router = NewRouter(Actions{
		Quit:       func() { v.running = false },
		Reload:     v.reload,
		PickFolder: v.pickFolder,
		ToggleMute: v.toggleMute,
		Open:       v.openFolder,
		Resize:     v.resize,
	})
	v.router.SetReducedMotion(cfg.Character.ReducedMotion)

	v.assets = assets.NewManager(cfg.Assets.FrameSources()...)
	if err := preload.Configure(v.assets, cfg.Assets.PreloadWorkers, log.Named("preload")); err != nil {
		return nil, err
	}
	v.cache = preload.Shared()

	log.Info("viewer initialized")
	return v, nil
}

// Region is the part of a width×height window the character is fitted into.
func Region(width, height int) geom.Rect {
	w, h := float64(width), float64(height)
	return geom.RectXYWH(w*0.08, h*0.06, w*0.84, h*0.88)
}

func (v *Viewer) setupAudio() *audio.Manager {
	if !v.cfg.Audio.Enabled {
		return nil
	}
	m := audio.New(v.log.Named("audio"))
	if err := m.Init(); err != nil {
		v.log.Warn("audio disabled", zap.Error(err))
		return nil
	}
	m.SetMasterVolume(v.cfg.Audio.MasterVolume)
	m.SetCueVolume(v.cfg.Audio.CueVolume)
	m.SetAmbientVolume(v.cfg.Audio.AmbientVolume)
	m.SetMuted(v.cfg.Audio.Muted)

	if v.cfg.Audio.CueDir != "" {
		cues, err := audio.LoadCues(os.DirFS(v.cfg.Audio.CueDir), ".", v.log.Named("audio"))
		if err != nil {
			v.log.Warn("loading cues", zap.Error(err))
		}
		m.SetCues(cues)
	}
	if v.cfg.Audio.Ambient != "" {
		data, err := os.ReadFile(v.cfg.Audio.Ambient)
		if err == nil {
			err = m.PlayAmbient(data)
		}
		if err != nil {
			v.log.Warn("ambient loop unavailable", zap.Error(err))
		}
	}
	return m
}

func (v *Viewer) loadFallback(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	img, err := assets.Decode(data)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return v.sprite.SetFallback(img)
}

// Run mounts the character and drives the window until it is closed or ctx
// is cancelled.
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if len(v.assets.Sources()) == 0 {
		v.pickFolder()
	} else {
		v.mount()
	}
	if v.cfg.Assets.Watch {
		v.watch(ctx)
	}

	v.running = true
	var frameBudget time.Duration
	if v.cfg.Window.FPSLimit > 0 {
		frameBudget = time.Second / time.Duration(v.cfg.Window.FPSLimit)
	}
	frameCount := 0
	fpsTimer := time.Now()

	v.log.Info("starting viewer loop")
	for v.running {
		start := time.Now()
		if ctx.Err() != nil {
			break
		}

		v.input.Update()
		for _, e := range v.input.Events() {
			v.router.Route(e)
		}

		v.loop.Step()
		if v.inst != nil && v.inst.Policy() != nil {
			v.inst.Policy().SetBounds(v.sprite.Bounds())
		}

		v.renderer.Begin()
		v.sprite.Draw()
		v.renderer.End()

		frameCount++
		if time.Since(fpsTimer) >= time.Second {
			v.log.Debug("fps", zap.Int("count", frameCount))
			frameCount = 0
			fpsTimer = time.Now()
		}

		if frameBudget > 0 {
			if rest := frameBudget - time.Since(start); rest > 0 {
				time.Sleep(rest)
			}
		}
	}
	return nil
}

// mount attaches a character built from the current sources.
func (v *Viewer) mount() {
	mcfg := mascot.Config{
		Mode:          v.cfg.Character.Mode,
		CoarsePointer: v.router.Coarse() || v.cfg.Character.CoarsePointer,
		ReducedMotion: v.router.ReducedMotion(),
		Load:          v.cfg.Character.LoadOptions(),
		Character:     v.cfg.Character.Options(),
		Interaction:   v.cfg.Interaction.Policy(),
	}
	inst, err := mascot.Mount(mcfg, mascot.Deps{
		Loop:   v.loop,
		Host:   v.sprite,
		Assets: v.assets,
		Cache:  v.cache,
		Log:    v.log.Named("mascot"),
	})
	if err != nil {
		if errors.Is(err, character.ErrNoPlayableSequence) {
			v.log.Warn("no playable frames; showing fallback", zap.Error(err))
		} else {
			v.log.Error("mounting character", zap.Error(err))
		}
		v.updateTitle()
		return
	}
	v.inst = inst

	ctrl := inst.Controller()
	if v.audio != nil {
		ctrl.OnStateChange(v.audio.OnStateChange)
	}
	var policy pointerPolicy
	if p := inst.Policy(); p != nil {
		policy = p
	}
	v.router.Attach(inst, policy, ctrl.NotifyUserEvent)
	inst.SetIntersection(1)
	v.updateTitle()
}

// unmount tears the current character down.
func (v *Viewer) unmount() {
	v.router.Detach()
	if v.inst == nil {
		return
	}
	if err := v.inst.Close(); err != nil {
		v.log.Warn("closing character", zap.Error(err))
	}
	v.inst = nil
	v.sprite.Clear()
}

// reload remounts with a new frame cache generation, so every frame is
// read from disk again.
func (v *Viewer) reload() {
	v.unmount()
	if v.gen > 0 {
		v.cache.Close()
	}
	v.gen++
	v.cache = preload.New(v.assets,
		preload.WithWorkers(v.cfg.Assets.PreloadWorkers),
		preload.WithLogger(v.log.Named("preload")),
	)
	v.log.Info("reloading frames", zap.Int("generation", v.gen))
	v.mount()
}

// openFolder replaces the frame sources with dir and remounts.
func (v *Viewer) openFolder(dir string) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		v.log.Warn("not a frames folder", zap.String("path", dir))
		return
	}
	v.assets = assets.NewManager(assets.DirSource("frames", dir, 0))
	v.cfg.Assets.Sources = []config.SourceConfig{{Name: "frames", Dir: dir}}
	v.reload()
}

// pickFolder asks for a frames folder without blocking the loop.
func (v *Viewer) pickFolder() {
	go func() {
		dir, err := dialog.Directory().Title("Choose a frames folder").Browse()
		if err != nil {
			if !errors.Is(err, dialog.ErrCancelled) {
				v.log.Warn("folder dialog", zap.Error(err))
			}
			return
		}
		v.loop.Post(func() { v.openFolder(dir) })
	}()
}

// watch remounts whenever frame files change on disk.
func (v *Viewer) watch(ctx context.Context) {
	var dirs []string
	for _, s := range v.cfg.Assets.Sources {
		if s.Dir != "" {
			dirs = append(dirs, s.Dir)
		}
	}
	if len(dirs) == 0 {
		return
	}
	go func() {
		err := assets.Watch(ctx, dirs, v.cfg.Assets.WatchDebounce, v.log.Named("watch"), func() {
			v.loop.Post(v.reload)
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			v.log.Warn("frame watcher stopped", zap.Error(err))
		}
	}()
}

func (v *Viewer) toggleMute() {
	if v.audio == nil {
		return
	}
	v.audio.SetMuted(!v.audio.Muted())
	v.updateTitle()
}

func (v *Viewer) resize(width, height int) {
	v.renderer.MatchWindow(width, height)
	v.sprite.SetRegion(Region(width, height))
}

func (v *Viewer) updateTitle() {
	status := mascot.StatusError.String()
	state := character.None
	if v.inst != nil {
		status = v.inst.Status().String()
		state = v.inst.Controller().State()
	}
	title := fmt.Sprintf("%s · %s · %s", v.title, state, status)
	if v.audio != nil && v.audio.Muted() {
		title += " · muted"
	}
	v.window.SetTitle(title)
}

// Close releases the character, audio and window.
func (v *Viewer) Close() {
	v.log.Info("closing viewer")
	v.unmount()
	if v.gen > 0 && v.cache != nil {
		v.cache.Close()
	}
	if v.audio != nil {
		v.audio.Close()
	}
	if v.sprite != nil {
		v.sprite.Close()
	}
	if v.window != nil {
		v.window.Close()
	}
}
