// Package mascot mounts the animated character into a host: it loads the
// frame sequences for the device class, primes the frame cache, wires the
// interaction policy and tracks the load status the host shows.
package mascot

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"sync/atomic"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/assets"
	"github.com/arcadeearth/launchsite/internal/character"
	"github.com/arcadeearth/launchsite/internal/interaction"
	"github.com/arcadeearth/launchsite/internal/preload"
	"github.com/arcadeearth/launchsite/internal/sched"
)

// Status is the load state a host reflects, e.g. by hiding its static
// fallback image once the character is ready.
type Status int32

const (
	StatusLoading Status = iota
	StatusReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusError:
		return "error"
	default:
		return "loading"
	}
}

// DefaultVisibleRatio is the share of the character that must be on screen
// for it to count as visible.
const DefaultVisibleRatio = 0.25

// ErrNoAssets is returned when Deps carries no frame source.
var ErrNoAssets = errors.New("mascot: no frame assets")

// Host is the surface the character is mounted into.
type Host interface {
	character.Mount
	// ShowFallback toggles the static image shown while the character is
	// not ready.
	ShowFallback(show bool)
}

// Config selects the device class and tuning.
type Config struct {
	// Mode is "auto", "desktop" or "mobile". Auto picks mobile for coarse
	// pointers.
	Mode          string
	CoarsePointer bool
	ReducedMotion bool
	VisibleRatio  float64 // default DefaultVisibleRatio

	Load        character.LoadOptions
	Character   character.Options
	Interaction interaction.Config
}

// Deps are the collaborators Mount needs.
type Deps struct {
	Loop   *sched.Loop
	Host   Host
	Assets *assets.Manager
	Cache  *preload.Cache // default preload.Shared()
	Log    *zap.Logger
}

// Instance is one mounted character.
type Instance struct {
	cfg    Config
	log    *zap.Logger
	loop   *sched.Loop
	tasks  *sched.Group
	host   Host
	status atomic.Int32

	ctrl   *character.Controller
	policy *interaction.Policy

	cleanups []func() error
	closed   bool
}

// ResolveMode turns a configured mode name into a character mode.
func ResolveMode(mode string, coarse bool) (character.Mode, error) {
	if mode == "" || strings.EqualFold(mode, "auto") {
		if coarse {
			return character.Mobile, nil
		}
		return character.Desktop, nil
	}
	return character.ParseMode(mode)
}

// Mount loads the character and attaches it to deps.Host. With no playable
// frames it returns character.ErrNoPlayableSequence and leaves the host
// showing its fallback. It must be called on the loop goroutine.
func Mount(cfg Config, deps Deps) (*Instance, error) {
	if deps.Host == nil {
		return nil, character.ErrNoMount
	}
	if deps.Loop == nil {
		return nil, character.ErrNoLoop
	}
	if deps.Assets == nil {
		return nil, ErrNoAssets
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	cache := deps.Cache
	if cache == nil {
		cache = preload.Shared()
	}
	if cfg.VisibleRatio <= 0 {
		cfg.VisibleRatio = DefaultVisibleRatio
	}

	mode, err := ResolveMode(cfg.Mode, cfg.CoarsePointer)
	if err != nil {
		return nil, err
	}

	deps.Host.ShowFallback(false)

	loadOpts := cfg.Load
	loadOpts.Mode = mode
	if loadOpts.Log == nil {
		loadOpts.Log = log.Named("loader")
	}
	seqs, err := character.LoadFrom(deps.Assets, loadOpts)
	if err != nil {
		deps.Host.ShowFallback(true)
		return nil, fmt.Errorf("loading character frames: %w", err)
	}

	inst := &Instance{
		cfg:   cfg,
		log:   log,
		loop:  deps.Loop,
		tasks: sched.NewGroup(deps.Loop),
		host:  deps.Host,
	}
	inst.status.Store(int32(StatusLoading))

	opts := cfg.Character
	opts.Loop = deps.Loop
	opts.Mount = &statusMount{Host: deps.Host, inst: inst}
	opts.Cache = cache
	opts.Log = log.Named("character")
	opts.Mobile = mode == character.Mobile
	opts.TouchMode = cfg.CoarsePointer
	opts.ReducedMotion = cfg.ReducedMotion
	if cfg.Load.Meta != nil && opts.Meta == nil {
		opts.Meta = cfg.Load.Meta
	}

	ctrl, err := character.New(seqs, opts)
	if err != nil {
		deps.Host.ShowFallback(true)
		return nil, err
	}
	inst.ctrl = ctrl

	go func() {
		<-ctrl.Ready()
		inst.tasks.Post(func() {
			if err := ctrl.Err(); err != nil {
				inst.fail(err)
			}
		})
	}()

	if !opts.Mobile {
		inst.policy = interaction.New(ctrl, deps.Loop, cfg.Interaction, log.Named("interaction"))
		inst.onCleanup(func() error {
			inst.policy.Close()
			return nil
		})
	}

	log.Info("character mounted",
		zap.Stringer("mode", mode),
		zap.Stringer("state", ctrl.State()),
		zap.Int("states", len(seqs)),
		zap.Bool("touch", cfg.CoarsePointer))
	return inst, nil
}

// statusMount marks the instance ready once a frame reaches the host.
type statusMount struct {
	Host
	inst *Instance
}

func (m *statusMount) Show(id string, img image.Image) {
	m.Host.Show(id, img)
	if img != nil && m.inst.Status() == StatusLoading {
		m.inst.status.Store(int32(StatusReady))
		m.Host.ShowFallback(false)
	}
}

func (i *Instance) fail(err error) {
	i.log.Warn("character failed to load", zap.Error(err))
	if i.Status() != StatusReady {
		i.status.Store(int32(StatusError))
		i.host.ShowFallback(true)
	}
}

func (i *Instance) onCleanup(fn func() error) {
	i.cleanups = append(i.cleanups, fn)
}

// OnCleanup registers fn to run when the instance closes, in registration
// order.
func (i *Instance) OnCleanup(fn func() error) {
	if i.closed {
		return
	}
	i.onCleanup(fn)
}

// Status returns the current load status. It is safe to call from any
// goroutine.
func (i *Instance) Status() Status {
	return Status(i.status.Load())
}

// Ready is closed once the priority frames have settled.
func (i *Instance) Ready() <-chan struct{} {
	return i.ctrl.Ready()
}

// Controller returns the character controller.
func (i *Instance) Controller() *character.Controller {
	return i.ctrl
}

// Policy returns the interaction policy, or nil in mobile mode.
func (i *Instance) Policy() *interaction.Policy {
	return i.policy
}

// SetReducedMotion forwards the OS reduced-motion preference.
func (i *Instance) SetReducedMotion(reduce bool) {
	if i.closed {
		return
	}
	i.ctrl.SetReducedMotion(reduce)
}

// SetCoarsePointer forwards a change of the primary pointer type.
func (i *Instance) SetCoarsePointer(coarse bool) {
	if i.closed {
		return
	}
	i.ctrl.SetTouchMode(coarse)
}

// SetIntersection reports what share of the character is on screen.
func (i *Instance) SetIntersection(ratio float64) {
	if i.closed {
		return
	}
	i.ctrl.SetVisibility(ratio > i.cfg.VisibleRatio)
}

// SignupSucceeded celebrates a completed signup right away.
func (i *Instance) SignupSucceeded() {
	if i.closed {
		return
	}
	i.ctrl.Trigger(character.Celebrate, character.TriggerOptions{Immediate: true})
}

// CallToAction queues a celebration when the signup button is pressed.
func (i *Instance) CallToAction() {
	if i.closed {
		return
	}
	i.ctrl.Trigger(character.Celebrate, character.TriggerOptions{})
}

// Close runs the cleanup callbacks in order and destroys the controller.
// Calling it again does nothing.
func (i *Instance) Close() error {
	if i.closed {
		return nil
	}
	i.closed = true

	var err error
	for _, fn := range i.cleanups {
		err = multierr.Append(err, fn())
	}
	i.cleanups = nil
	i.tasks.CancelAll()
	i.ctrl.Destroy()
	i.log.Info("character unmounted")
	return err
}
