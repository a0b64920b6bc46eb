// Package interaction turns raw pointer, touch, focus and click input into
// character triggers: hover with an inset-ellipse hit test, lingering gaze,
// rapid-motion sneezes, proximity greetings and background clicks.
package interaction

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/arcadeearth/launchsite/internal/character"
	"github.com/arcadeearth/launchsite/internal/sched"
	geom "github.com/arcadeearth/launchsite/pkg/math"
)

// Target is the part of the character controller the policy drives.
type Target interface {
	State() character.State
	Available(s character.State) bool
	Meta(s character.State) character.StateMeta
	SequenceLen(s character.State) int

	Hover(hovering bool)
	UpdateProximity(distance float64)
	NotifyUserEvent()
	Trigger(s character.State, opts character.TriggerOptions)
	PlayIdleVariant() bool
	PlayLoopingState(s character.State, loops int, fallback character.State)
	PlayWaveSequence(opts character.WaveOptions) bool
}

// Config tunes the policy. Zero values take the defaults noted.
type Config struct {
	HitMargins geom.Margins // default {0.18, 0.08, 0.28}

	StillThreshold  float64       // pixels, default 12
	LookingDelay    time.Duration // default 3s
	LookingCooldown time.Duration // default 4s

	RapidSpeed    float64       // pixels per second, default 450
	RapidRequired time.Duration // default 450ms
	RapidDecay    float64       // default 0.6

	SneezeCooldown time.Duration // default 5s
	TouchHoverHold time.Duration // default 2.4s
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		HitMargins:      geom.Margins{X: 0.18, Top: 0.08, Bottom: 0.28},
		StillThreshold:  12,
		LookingDelay:    3 * time.Second,
		LookingCooldown: 4 * time.Second,
		RapidSpeed:      450,
		RapidRequired:   450 * time.Millisecond,
		RapidDecay:      0.6,
		SneezeCooldown:  5 * time.Second,
		TouchHoverHold:  2400 * time.Millisecond,
	}
}

func (c *Config) defaults() {
	d := DefaultConfig()
	if c.HitMargins == (geom.Margins{}) {
		c.HitMargins = d.HitMargins
	}
	if c.StillThreshold <= 0 {
		c.StillThreshold = d.StillThreshold
	}
	if c.LookingDelay <= 0 {
		c.LookingDelay = d.LookingDelay
	}
	if c.LookingCooldown <= 0 {
		c.LookingCooldown = d.LookingCooldown
	}
	if c.RapidSpeed <= 0 {
		c.RapidSpeed = d.RapidSpeed
	}
	if c.RapidRequired <= 0 {
		c.RapidRequired = d.RapidRequired
	}
	if c.RapidDecay <= 0 {
		c.RapidDecay = d.RapidDecay
	}
	if c.SneezeCooldown <= 0 {
		c.SneezeCooldown = d.SneezeCooldown
	}
	if c.TouchHoverHold <= 0 {
		c.TouchHoverHold = d.TouchHoverHold
	}
}

// sneezeRearmSlack is added to the sneeze duration before gaze tracking
// resumes.
const sneezeRearmSlack = 80 * time.Millisecond

type sample struct {
	pos geom.Vec2
	at  time.Time
}

// Policy routes input for one character. Like the controller it drives, it
// must only be used from the loop goroutine.
type Policy struct {
	cfg    Config
	target Target
	loop   *sched.Loop
	tasks  *sched.Group
	log    *zap.Logger

	bounds geom.Rect

	inside     bool
	lastSample *sample
	lastSpeed  *sample
	rapid      time.Duration

	lookingCooldownTo time.Time
	sneezeCooldownTo  time.Time
	lingerTask        *sched.Task
	rearmTask         *sched.Task
	touchHoverTask    *sched.Task

	pointerFrame *sched.Task
	pointerPos   geom.Vec2
	pointerTouch bool

	closed bool
}

// New attaches a policy to target. Timers run on loop.
func New(target Target, loop *sched.Loop, cfg Config, log *zap.Logger) *Policy {
	cfg.defaults()
	if log == nil {
		log = zap.NewNop()
	}
	return &Policy{
		cfg:    cfg,
		target: target,
		loop:   loop,
		tasks:  sched.NewGroup(loop),
		log:    log,
	}
}

// SetBounds updates the on-screen rectangle of the sprite.
func (p *Policy) SetBounds(r geom.Rect) {
	p.bounds = r
}

// Bounds returns the sprite rectangle last set.
func (p *Policy) Bounds() geom.Rect {
	return p.bounds
}

// Inside reports whether a mouse pointer is over the character.
func (p *Policy) Inside() bool {
	return p.inside
}

// OnCharacter reports whether pos hits the character's inset ellipse.
func (p *Policy) OnCharacter(pos geom.Vec2) bool {
	if p.bounds.Empty() || !pos.IsFinite() {
		return false
	}
	return geom.InsetEllipseContains(p.bounds, p.cfg.HitMargins, pos)
}

// PointerMove handles pointer motion anywhere in the window. touch marks
// moves that come from a touch contact rather than a mouse.
func (p *Policy) PointerMove(pos geom.Vec2, touch bool) {
	if p.closed {
		return
	}
	p.queueProximity(pos, touch)

	if !touch {
		on := p.OnCharacter(pos)
		switch {
		case on && !p.inside:
			p.enter(pos)
		case !on && p.inside:
			p.Leave()
			return
		}
	}
	if touch || !p.inside {
		return
	}

	now := p.loop.Now()
	cur := &sample{pos: pos, at: now}

	if p.lastSample == nil || p.lastSample.pos.Distance(pos) > p.cfg.StillThreshold {
		p.scheduleLinger()
	}
	p.lastSample = cur

	if prev := p.lastSpeed; prev != nil {
		if dt := now.Sub(prev.at); dt > 0 {
			speed := prev.pos.Distance(pos) / dt.Seconds()
			if speed >= p.cfg.RapidSpeed {
				p.rapid = min(p.cfg.RapidRequired, p.rapid+dt)
				if p.rapid >= p.cfg.RapidRequired {
					p.triggerSneeze(now)
				}
			} else {
				decay := time.Duration(float64(dt) * p.cfg.RapidDecay)
				p.rapid = max(0, p.rapid-decay)
			}
		}
	}
	p.lastSpeed = cur
}

// queueProximity reports the latest pointer position once per frame.
func (p *Policy) queueProximity(pos geom.Vec2, touch bool) {
	p.pointerPos, p.pointerTouch = pos, touch
	if p.pointerFrame.Pending() {
		return
	}
	p.pointerFrame = p.tasks.RequestFrame(func(time.Time) {
		p.pointerFrame = nil
		p.target.NotifyUserEvent()
		if p.OnCharacter(p.pointerPos) {
			p.target.UpdateProximity(0)
		} else {
			p.target.UpdateProximity(math.Inf(1))
		}
	})
}

// Focus handles keyboard focus entering or leaving the character.
func (p *Policy) Focus(focused bool) {
	if p.closed {
		return
	}
	if focused {
		if !p.inside {
			p.target.Hover(true)
		}
		return
	}
	p.Leave()
}

func (p *Policy) enter(pos geom.Vec2) {
	p.target.Hover(true)
	p.inside = true
	s := &sample{pos: pos, at: p.loop.Now()}
	p.lastSample = s
	p.lastSpeed = s
	p.rapid = 0
	p.scheduleLinger()
}

// Leave handles the pointer leaving the character or the window.
func (p *Policy) Leave() {
	if p.closed {
		return
	}
	if p.inside {
		p.target.Hover(false)
		p.inside = false
	}
	p.target.UpdateProximity(math.Inf(1))
	p.resetTracking()
}

// TouchStart handles a tap on the character: greet, hover for a moment,
// then let go.
func (p *Policy) TouchStart(pos geom.Vec2) {
	if p.closed {
		return
	}
	p.target.NotifyUserEvent()
	if !p.OnCharacter(pos) {
		return
	}
	p.target.UpdateProximity(0)
	p.target.Hover(true)
	p.touchHoverTask.Cancel()
	p.touchHoverTask = p.tasks.After(p.cfg.TouchHoverHold, func() {
		p.touchHoverTask = nil
		p.target.Hover(false)
	})
}

// UserEvent reports a key press or pointer press anywhere.
func (p *Policy) UserEvent() {
	if p.closed {
		return
	}
	p.target.NotifyUserEvent()
}

// Click handles a completed click. Primary clicks on the background, away
// from the character and from interactive chrome, play the wave flourish.
func (p *Policy) Click(pos geom.Vec2, primary, onChrome bool) bool {
	if p.closed || !primary || onChrome || p.bounds.Contains(pos) {
		return false
	}
	return p.target.PlayWaveSequence(character.WaveOptions{
		EnsureStanding: true,
		Fallback:       character.Idle,
		SitAfter:       true,
	})
}

func (p *Policy) lookingAllowedFrom(s character.State) bool {
	return s == character.Idle || s == character.Hover
}

// scheduleLinger arms the lingering-gaze timer while the pointer rests on
// the character.
func (p *Policy) scheduleLinger() {
	if !p.inside {
		p.clearLinger()
		return
	}
	if p.target.State() == character.Sneeze {
		return
	}
	if p.loop.Now().Before(p.lookingCooldownTo) {
		return
	}

	p.clearLinger()
	p.clearRearm()
	p.lingerTask = p.tasks.After(p.cfg.LookingDelay, func() {
		p.lingerTask = nil
		if !p.inside {
			return
		}
		if p.loop.Now().Before(p.lookingCooldownTo) || !p.lookingAllowedFrom(p.target.State()) {
			p.scheduleLinger()
			return
		}

		played := p.target.PlayIdleVariant()
		if !played && p.target.Available(character.Looking) {
			p.target.PlayLoopingState(character.Looking, 1, character.Idle)
			played = true
		}
		if !played {
			return
		}

		p.lookingCooldownTo = p.loop.Now().Add(p.cfg.LookingCooldown)
		p.clearRearm()
		p.rearmTask = p.tasks.After(p.cfg.LookingCooldown, func() {
			p.rearmTask = nil
			if !p.inside {
				p.lookingCooldownTo = time.Time{}
				return
			}
			p.scheduleLinger()
		})
	})
}

func (p *Policy) triggerSneeze(now time.Time) {
	if now.Before(p.sneezeCooldownTo) || !p.target.Available(character.Sneeze) {
		return
	}

	p.sneezeCooldownTo = now.Add(p.cfg.SneezeCooldown)
	p.rapid = 0
	p.clearLinger()
	p.clearRearm()

	d := p.sneezeDuration()
	p.lookingCooldownTo = now.Add(d)

	fallback := character.Idle
	if p.inside {
		fallback = character.Hover
	}
	p.log.Debug("rapid motion sneeze", zap.Duration("duration", d))
	p.target.PlayLoopingState(character.Sneeze, 1, fallback)

	p.rearmTask = p.tasks.After(d+sneezeRearmSlack, func() {
		p.rearmTask = nil
		if !p.inside {
			p.lookingCooldownTo = time.Time{}
			return
		}
		p.lookingCooldownTo = p.loop.Now()
		p.scheduleLinger()
	})
}

func (p *Policy) sneezeDuration() time.Duration {
	n := p.target.SequenceLen(character.Sneeze)
	if n == 0 {
		return 1600 * time.Millisecond
	}
	fps := p.target.Meta(character.Sneeze).FPS
	if fps <= 0 {
		fps = character.DefaultFPS
	}
	return time.Duration(float64(n) * float64(time.Second) / max(fps, 1))
}

func (p *Policy) clearLinger() {
	p.lingerTask.Cancel()
	p.lingerTask = nil
}

func (p *Policy) clearRearm() {
	p.rearmTask.Cancel()
	p.rearmTask = nil
}

// LingerArmed reports whether the lingering-gaze timer is running.
func (p *Policy) LingerArmed() bool {
	return p.lingerTask.Pending()
}

// RapidMotion returns the accumulated rapid-motion time.
func (p *Policy) RapidMotion() time.Duration {
	return p.rapid
}

func (p *Policy) resetTracking() {
	p.clearLinger()
	p.clearRearm()
	p.lastSample = nil
	p.lastSpeed = nil
	p.rapid = 0
	p.lookingCooldownTo = time.Time{}
}

// Close cancels every timer the policy owns. Later input is ignored.
func (p *Policy) Close() {
	if p.closed {
		return
	}
	p.resetTracking()
	p.inside = false
	p.touchHoverTask = nil
	p.pointerFrame = nil
	p.tasks.CancelAll()
	p.closed = true
}
