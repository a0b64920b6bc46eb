// Package character animates the site mascot: it loads frame sequences per
// animation state and plays them through a priority-arbitrated state machine
// driven by a sched.Loop.
package character

import (
	"context"
	"errors"
	"image"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/preload"
	"github.com/arcadeearth/launchsite/internal/sched"
)

var (
	// ErrNoMount is returned by New without a Mount.
	ErrNoMount = errors.New("character: mount required")

	// ErrNoLoop is returned by New without a Loop.
	ErrNoLoop = errors.New("character: loop required")

	// ErrPrimeFailed is reported by Err when every primed frame failed to load.
	ErrPrimeFailed = errors.New("character: every primed frame failed to load")
)

// Mount is where the controller draws.
type Mount interface {
	// Show displays a decoded frame.
	Show(frameID string, img image.Image)
	// SetStateLabel publishes the current state for styling and tests.
	SetStateLabel(s State)
	// Clear removes everything the controller drew.
	Clear()
}

// Options configures a Controller. Zero values take the defaults noted.
type Options struct {
	Loop  *sched.Loop    // required
	Mount Mount          // required
	Cache *preload.Cache // default preload.Shared()
	Log   *zap.Logger

	Meta *MetaTable // default DefaultMeta()

	// Mobile restricts playback to MobileStates at MobileFPS.
	Mobile       bool
	MobileStates []State
	MobileFPS    float64

	// TouchMode enables auto-cycling and touch-tuned idle variant delays.
	TouchMode     bool
	ReducedMotion bool

	ProximityThreshold float64 // default 90

	AutoCycleStates         []State       // default [IdleLong]
	AutoCycleDelay          time.Duration // default 12s
	AutoCycleOnVisibleDelay time.Duration // default 6s
	GreetingCooldown        time.Duration // default 8s

	IdleVariants         []State // default looking, gum, selfie, spin
	VariantDelayMin      time.Duration
	VariantDelayMax      time.Duration
	TouchVariantDelayMin time.Duration
	TouchVariantDelayMax time.Duration

	SleepAfter time.Duration // default 15s

	// Variants lets a requested state be swapped for a random available
	// alternative.
	Variants map[State][]State

	// Rand drives variant choice. Default is randomly seeded.
	Rand *rand.Rand
}

func (o *Options) defaults() {
	if o.Log == nil {
		o.Log = zap.NewNop()
	}
	if o.Meta == nil {
		meta := DefaultMeta()
		o.Meta = &meta
	}
	if len(o.MobileStates) == 0 {
		o.MobileStates = defaultMobileStates
	}
	if o.MobileFPS <= 0 {
		o.MobileFPS = MobileFPS
	}
	if o.ProximityThreshold <= 0 {
		o.ProximityThreshold = 90
	}
	if o.AutoCycleStates == nil {
		o.AutoCycleStates = []State{IdleLong}
	}
	if o.AutoCycleDelay <= 0 {
		o.AutoCycleDelay = 12 * time.Second
	}
	if o.AutoCycleOnVisibleDelay <= 0 {
		o.AutoCycleOnVisibleDelay = 6 * time.Second
	}
	if o.GreetingCooldown <= 0 {
		o.GreetingCooldown = 8 * time.Second
	}
	if o.IdleVariants == nil {
		o.IdleVariants = defaultIdleVariants
	}
	if o.VariantDelayMin <= 0 {
		o.VariantDelayMin = 5 * time.Second
	}
	if o.VariantDelayMax < o.VariantDelayMin {
		o.VariantDelayMax = 12 * time.Second
	}
	if o.TouchVariantDelayMin <= 0 {
		o.TouchVariantDelayMin = 3 * time.Second
	}
	if o.TouchVariantDelayMax < o.TouchVariantDelayMin {
		o.TouchVariantDelayMax = 8 * time.Second
	}
	if o.SleepAfter <= 0 {
		o.SleepAfter = sleepAfterIdleLong
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
}

type frameDrop struct {
	at       time.Time
	elapsed  time.Duration
	expected time.Duration
}

// Controller is the animation state machine for one mounted character.
//
// A Controller is not safe for concurrent use: call it from the goroutine
// that steps its Loop, and use Loop.Post from anywhere else. Ready and Err
// may be called from any goroutine.
type Controller struct {
	opts  Options
	log   *zap.Logger
	loop  *sched.Loop
	tasks *sched.Group
	cache *preload.Cache
	mount Mount
	seqs  Sequences
	meta  MetaTable
	rng   *rand.Rand

	mobile        bool
	mobileAllowed stateSet
	touch         bool
	visible       bool
	reducedMotion bool
	destroyed     bool
	running       bool

	current       State
	frameIndex    int
	pending       State
	lastFrameTime time.Time
	shownFrame    string

	lastInteraction time.Time
	hovering        bool
	proximityActive bool

	fpsScale     float64
	recoveryTask *sched.Task
	frameTask    *sched.Task
	drops        []frameDrop

	idleVariantTask   *sched.Task
	deferIdleVariant  bool
	variantCooldownTo time.Time
	lastVariant       State

	autoCycleTask   *sched.Task
	autoCycleStates []State
	autoCycleIndex  int
	lastGreeting    time.Time

	sleepTask      *sched.Task
	transientTasks []*sched.Task

	// overrides holds the eventual destination armed for a non-looping
	// state; an entry is dropped when its state is left.
	overrides map[State]State

	// frames holds non-owning references into the shared cache.
	frames map[string]*preload.Record

	listeners []func(from, to State)

	readyCh     chan struct{}
	readyMu     sync.Mutex
	readyErr    error
	primeCancel context.CancelFunc
}

// New creates a controller for seqs and starts priming its hero frames.
// Playback starts once priming settles.
func New(seqs Sequences, opts Options) (*Controller, error) {
	if opts.Mount == nil {
		return nil, ErrNoMount
	}
	if opts.Loop == nil {
		return nil, ErrNoLoop
	}
	opts.defaults()
	if opts.Cache == nil {
		opts.Cache = preload.Shared()
	}

	c := &Controller{
		opts:          opts,
		log:           opts.Log,
		loop:          opts.Loop,
		tasks:         sched.NewGroup(opts.Loop),
		cache:         opts.Cache,
		mount:         opts.Mount,
		seqs:          seqs,
		meta:          *opts.Meta,
		rng:           opts.Rand,
		mobile:        opts.Mobile,
		mobileAllowed: setOf(opts.MobileStates...),
		touch:         opts.TouchMode,
		reducedMotion: opts.ReducedMotion,
		pending:       None,
		lastVariant:   None,
		fpsScale:      1,
		overrides:     make(map[State]State),
		frames:        make(map[string]*preload.Record),
		readyCh:       make(chan struct{}),
	}
	c.lastInteraction = c.loop.Now()

	if c.mobile {
		for _, s := range opts.MobileStates {
			c.meta[s].FPS = opts.MobileFPS
		}
	} else {
		for _, s := range opts.AutoCycleStates {
			if c.Available(s) {
				c.autoCycleStates = append(c.autoCycleStates, s)
			}
		}
	}

	switch {
	case c.mobile && c.Available(IdleLong):
		c.current = IdleLong
	case c.Available(SitDown):
		c.current = SitDown
	case c.Available(Idle):
		c.current = Idle
	case c.Available(Hover):
		c.current = Hover
	default:
		c.current = c.firstLooping()
	}
	if !c.Available(c.current) {
		return nil, ErrNoPlayableSequence
	}
	c.mount.SetStateLabel(c.current)

	c.prime()
	return c, nil
}

// prime ensures every hero frame at high priority, the first primerFrames
// of each state ahead of the rest, and queues the other states as idle
// tasks. Playback starts when the hero frames settle.
func (c *Controller) prime() {
	var heroes []State
	for _, s := range c.seqs.States() {
		if c.Available(s) && heroStates.has(s) {
			heroes = append(heroes, s)
		}
	}

	recs := make(map[State][]*preload.Record, len(heroes))
	for _, s := range heroes {
		frames := c.seqs[s].Frames
		for _, id := range frames[:min(primerFrames, len(frames))] {
			recs[s] = append(recs[s], c.preloadFrame(id, true))
		}
	}
	for _, s := range heroes {
		frames := c.seqs[s].Frames
		if len(frames) > primerFrames {
			for _, id := range frames[primerFrames:] {
				recs[s] = append(recs[s], c.preloadFrame(id, true))
			}
		}
	}
	for _, s := range c.seqs.States() {
		if c.Available(s) && !heroStates.has(s) {
			c.tasks.Idle(func() { c.preloadState(s, false) }, idleTaskTimeout)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.primeCancel = cancel

	go func() {
		err := waitPrimed(ctx, recs)
		c.tasks.Post(c.onPrimed)

		c.readyMu.Lock()
		c.readyErr = err
		c.readyMu.Unlock()
		close(c.readyCh)
	}()
}

func (c *Controller) onPrimed() {
	c.log.Debug("character primed", zap.Stringer("state", c.current))
	c.bufferFill(c.current)
	c.render(true)
	c.start()
}

// Ready is closed once the priority frames have settled.
func (c *Controller) Ready() <-chan struct{} {
	return c.readyCh
}

// Err reports a priming failure after Ready is closed.
func (c *Controller) Err() error {
	c.readyMu.Lock()
	defer c.readyMu.Unlock()
	return c.readyErr
}

func (c *Controller) start() {
	if c.destroyed || c.reducedMotion || c.running {
		return
	}
	c.running = true
	c.lastFrameTime = c.loop.Now()
	c.frameTask = c.tasks.RequestFrame(c.tick)
}

func (c *Controller) stop() {
	c.running = false
	c.frameTask.Cancel()
	c.frameTask = nil
}

// Destroy cancels every timer and task the controller owns and clears the
// mount. Fetches already in the shared cache run to completion unobserved.
func (c *Controller) Destroy() {
	if c.destroyed {
		return
	}
	c.stop()
	c.destroyed = true
	c.tasks.CancelAll()
	if c.primeCancel != nil {
		c.primeCancel()
	}
	c.idleVariantTask, c.autoCycleTask, c.sleepTask, c.recoveryTask = nil, nil, nil, nil
	c.transientTasks = nil
	c.pending = None
	clear(c.overrides)
	clear(c.frames)
	c.drops = nil
	c.listeners = nil
	c.mount.Clear()
	c.log.Debug("character destroyed")
}

// Destroyed reports whether Destroy has run.
func (c *Controller) Destroyed() bool { return c.destroyed }

// tick is the per-frame callback: it advances the frame when due, holds on
// a frame that has not loaded yet, and drains the pending request.
func (c *Controller) tick(now time.Time) {
	c.frameTask = nil
	if c.destroyed || !c.running {
		return
	}

	seq := c.seqs[c.current]
	if n := len(seq.Frames); n > 0 {
		meta := c.meta.Get(c.current)
		fps := max(1, c.fpsFor(c.current)*c.fpsScale)
		interval := time.Duration(float64(time.Second) / fps)
		elapsed := now.Sub(c.lastFrameTime)

		if elapsed >= interval {
			next := (c.frameIndex + 1) % n
			if !c.frameSettled(seq.Frames[next]) {
				c.bufferFill(c.current)
				c.stall(now, interval)
			} else {
				c.frameIndex++
				if c.frameIndex >= n {
					if meta.Loop {
						c.frameIndex = 0
					} else {
						c.complete()
					}
				}
				c.render(false)
				if elapsed > interval*3/2 {
					c.recordDrop(now, elapsed, interval)
				}
				c.lastFrameTime = now
				c.bufferFill(c.current)
			}
		}
	}

	c.evaluate()

	if c.running && !c.destroyed {
		c.frameTask = c.tasks.RequestFrame(c.tick)
	}
}

// stall throttles playback after a due frame was not ready. The scale only
// returns to 1 once a full recovery window passes without another stall.
func (c *Controller) stall(now time.Time, interval time.Duration) {
	c.recordDrop(now, now.Sub(c.lastFrameTime), interval)
	c.fpsScale = max(minFPSScale, c.fpsScale*fpsScaleStep)
	c.lastFrameTime = now.Add(-interval / 2)

	c.recoveryTask.Cancel()
	c.recoveryTask = c.tasks.After(frameDropWindow, c.resetFPSScale)

	c.log.Debug("frame stall",
		zap.Stringer("state", c.current),
		zap.Int("frame", c.frameIndex),
		zap.Float64("scale", c.fpsScale))
}

func (c *Controller) resetFPSScale() {
	c.recoveryTask = nil
	c.fpsScale = 1
}

func (c *Controller) recordDrop(now time.Time, elapsed, expected time.Duration) {
	c.drops = append(c.drops, frameDrop{at: now, elapsed: elapsed, expected: expected})
	keep := c.drops[:0]
	for _, d := range c.drops {
		if now.Sub(d.at) <= frameDropWindow {
			keep = append(keep, d)
		}
	}
	c.drops = keep
}

// render shows the current frame if it has loaded; otherwise the last
// shown image stays up.
func (c *Controller) render(force bool) {
	seq := c.seqs[c.current]
	if len(seq.Frames) == 0 {
		return
	}
	id := seq.Frames[c.frameIndex%len(seq.Frames)]
	rec := c.record(id)
	if rec == nil || !rec.Ready() {
		return
	}
	if force || c.shownFrame != id {
		c.shownFrame = id
		c.mount.Show(id, rec.Image())
	}
}

func (c *Controller) fpsFor(s State) float64 {
	if fps := c.meta.Get(s).FPS; fps > 0 {
		return fps
	}
	if fps := c.seqs[s].FPS; fps > 0 {
		return fps
	}
	return DefaultFPS
}

// State returns the current state.
func (c *Controller) State() State { return c.current }

// Pending returns the queued request, or None.
func (c *Controller) Pending() State { return c.pending }

// FrameIndex returns the play cursor within the current sequence.
func (c *Controller) FrameIndex() int { return c.frameIndex }

// Frame returns the id of the frame at the play cursor.
func (c *Controller) Frame() string {
	seq := c.seqs[c.current]
	if len(seq.Frames) == 0 {
		return ""
	}
	return seq.Frames[c.frameIndex%len(seq.Frames)]
}

// FPSScale returns the stall throttle factor, 1 when healthy.
func (c *Controller) FPSScale() float64 { return c.fpsScale }

// FrameDrops returns the number of late or stalled frames in the last window.
func (c *Controller) FrameDrops() int { return len(c.drops) }

// Mobile reports whether mobile restrictions apply.
func (c *Controller) Mobile() bool { return c.mobile }

// TouchMode reports whether touch interaction routing is active.
func (c *Controller) TouchMode() bool { return c.touch }

// Visible reports the last visibility signal.
func (c *Controller) Visible() bool { return c.visible }

// Hovering reports the last hover signal.
func (c *Controller) Hovering() bool { return c.hovering }

// Running reports whether the frame loop is active.
func (c *Controller) Running() bool { return c.running }

// LastInteraction returns when the user last interacted.
func (c *Controller) LastInteraction() time.Time { return c.lastInteraction }

// Sequences returns the loaded sequences.
func (c *Controller) Sequences() Sequences { return c.seqs }

// Meta returns the effective metadata for s.
func (c *Controller) Meta(s State) StateMeta { return c.meta.Get(s) }

// SequenceLen returns the number of frames of s.
func (c *Controller) SequenceLen(s State) int { return len(c.seqs[s].Frames) }

// Available reports whether s can be played: it has frames and, in mobile
// mode, is one of the mobile states.
func (c *Controller) Available(s State) bool {
	if !s.Valid() || len(c.seqs[s].Frames) == 0 {
		return false
	}
	return !c.mobile || c.mobileAllowed.has(s)
}

// OnStateChange registers fn to run after every state change.
func (c *Controller) OnStateChange(fn func(from, to State)) {
	c.listeners = append(c.listeners, fn)
}

// SetReducedMotion stops the frame loop and pins the current frame while
// reduced motion is requested, and restarts playback when it is lifted.
func (c *Controller) SetReducedMotion(reduce bool) {
	if c.destroyed || c.reducedMotion == reduce {
		return
	}
	c.reducedMotion = reduce
	if reduce {
		c.stop()
		c.render(true)
		c.clearIdleVariant()
		return
	}
	c.start()
	if c.current == Idle {
		c.scheduleIdleVariant()
	}
}

func (c *Controller) firstLooping() State {
	for _, s := range AllStates() {
		if c.Available(s) && c.meta.Get(s).Loop {
			return s
		}
	}
	for _, s := range AllStates() {
		if c.Available(s) {
			return s
		}
	}
	return Idle
}
