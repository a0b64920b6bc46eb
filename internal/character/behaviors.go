package character

import (
	"math"
	"time"

	"github.com/arcadeearth/launchsite/internal/sched"
)

func (c *Controller) registerInteraction() {
	c.lastInteraction = c.loop.Now()
	if c.touch && !c.mobile {
		if c.visible {
			c.scheduleAutoCycle(c.opts.AutoCycleDelay)
		} else {
			c.clearAutoCycle()
		}
	}
}

// NotifyUserEvent records user activity anywhere on the page.
func (c *Controller) NotifyUserEvent() {
	if c.destroyed {
		return
	}
	c.registerInteraction()
}

// Hover reports the pointer entering or leaving the character. Entering
// stands the character up when it has a stand-up sequence, otherwise it
// greets; leaving sits it down.
func (c *Controller) Hover(hovering bool) {
	if c.destroyed || c.mobile {
		return
	}
	was := c.hovering
	c.hovering = hovering
	c.registerInteraction()

	if hovering {
		if was {
			return
		}
		if !IsStanding(c.current) && c.Available(StandUp) && c.CanInterrupt(StandUp) {
			fallback := Idle
			switch {
			case c.Available(Hover):
				fallback = Hover
			case c.Available(IdleLong):
				fallback = IdleLong
			}
			c.PlayTransientState(StandUp, c.linearDuration(StandUp), fallback)
			return
		}
		if c.Available(Wave) {
			c.Trigger(Wave, TriggerOptions{Immediate: true})
		} else {
			c.Trigger(Hover, TriggerOptions{Immediate: true})
		}
		return
	}

	if !was {
		return
	}
	if c.Available(SitDown) {
		c.pending = None
		clear(c.overrides)
		c.setState(SitDown, false)
		return
	}
	if c.Available(IdleLong) {
		c.Trigger(IdleLong, TriggerOptions{Immediate: true})
	} else {
		c.Trigger(Idle, TriggerOptions{Immediate: true})
	}
}

// UpdateProximity reports the pointer distance from the character in
// pixels. Crossing into the threshold greets once per crossing.
func (c *Controller) UpdateProximity(distance float64) {
	if c.destroyed || c.mobile || math.IsNaN(distance) {
		return
	}
	was := c.proximityActive
	c.proximityActive = distance <= c.opts.ProximityThreshold
	if c.proximityActive && !was && !c.hovering && c.pending != IdleLong && c.current != IdleLong {
		c.Trigger(Wave, TriggerOptions{Immediate: true})
	}
}

// SetTouchMode switches touch interaction routing. Mobile restrictions are
// decided separately at construction.
func (c *Controller) SetTouchMode(touch bool) {
	if c.destroyed || c.touch == touch {
		return
	}
	c.touch = touch
	if c.mobile {
		c.clearAutoCycle()
		return
	}
	if c.touch && c.visible {
		c.scheduleAutoCycle(c.opts.AutoCycleDelay)
	} else {
		c.clearAutoCycle()
	}
}

// SetVisibility reports whether the character is on screen.
func (c *Controller) SetVisibility(visible bool) {
	if c.destroyed || c.visible == visible {
		return
	}
	c.visible = visible
	if !visible {
		c.clearAutoCycle()
		c.clearIdleVariant()
		return
	}
	if c.mobile {
		c.clearIdleVariant()
		return
	}

	if c.current == Idle {
		c.scheduleIdleVariant()
	}

	if c.touch {
		now := c.loop.Now()
		if c.lastGreeting.IsZero() || now.Sub(c.lastGreeting) > c.opts.GreetingCooldown {
			c.lastGreeting = now
			if c.Available(Wave) {
				c.Trigger(Wave, TriggerOptions{Immediate: true})
			}
		}
		c.scheduleAutoCycle(c.opts.AutoCycleOnVisibleDelay)
	}
}

func (c *Controller) scheduleAutoCycle(delay time.Duration) {
	c.clearAutoCycle()
	if c.mobile || !c.touch || !c.visible || len(c.autoCycleStates) == 0 {
		return
	}
	c.autoCycleTask = c.tasks.After(max(0, delay), func() {
		c.autoCycleTask = nil
		c.autoCycleTick()
	})
}

func (c *Controller) clearAutoCycle() {
	c.autoCycleTask.Cancel()
	c.autoCycleTask = nil
}

func (c *Controller) autoCycleTick() {
	if !c.touch || !c.visible || c.mobile {
		return
	}

	next := c.nextAutoState()
	if next == None {
		c.scheduleAutoCycle(c.opts.AutoCycleDelay)
		return
	}
	if !c.CanInterrupt(next) {
		c.scheduleAutoCycle(max(4*time.Second, c.opts.AutoCycleDelay*3/4))
		return
	}

	if c.meta.Get(next).Loop {
		c.PlayTransientState(next, defaultTransient, None)
	} else {
		c.Trigger(next, TriggerOptions{Immediate: true})
	}
	c.scheduleAutoCycle(c.opts.AutoCycleDelay)
}

// nextAutoState walks the auto-cycle list round-robin, skipping the
// current state when there is an alternative.
func (c *Controller) nextAutoState() State {
	var available []State
	for _, s := range c.autoCycleStates {
		if c.Available(s) {
			available = append(available, s)
		}
	}
	if len(available) == 0 {
		return None
	}

	n := len(available)
	next := available[c.autoCycleIndex%n]
	c.autoCycleIndex = (c.autoCycleIndex + 1) % n
	if next == c.current && n > 1 {
		next = available[c.autoCycleIndex]
		c.autoCycleIndex = (c.autoCycleIndex + 1) % n
	}
	return next
}

func (c *Controller) idleVariantPool() []State {
	if c.mobile {
		return nil
	}
	var pool []State
	for _, s := range c.opts.IdleVariants {
		if c.Available(s) {
			pool = append(pool, s)
		}
	}
	return pool
}

func (c *Controller) pickIdleVariant(pool []State) State {
	if len(pool) == 0 {
		return None
	}
	options := pool
	if len(options) > 1 && c.lastVariant != None {
		filtered := make([]State, 0, len(options))
		for _, s := range options {
			if s != c.lastVariant {
				filtered = append(filtered, s)
			}
		}
		if len(filtered) > 0 {
			options = filtered
		}
	}
	return options[c.rng.IntN(len(options))]
}

func (c *Controller) executeIdleVariant() bool {
	next := c.pickIdleVariant(c.idleVariantPool())
	if next == None {
		return false
	}
	if until := c.loop.Now().Add(idleVariantCooldown); until.After(c.variantCooldownTo) {
		c.variantCooldownTo = until
	}
	c.lastVariant = next
	c.PlayLoopingState(next, 1, Idle)
	return true
}

func (c *Controller) idleVariantAllowed() bool {
	return !c.destroyed && c.visible && !c.reducedMotion && !c.deferIdleVariant && !c.mobile
}

// PlayIdleVariant plays one idle flourish now if conditions allow.
func (c *Controller) PlayIdleVariant() bool {
	if !c.idleVariantAllowed() {
		return false
	}
	c.clearIdleVariant()
	return c.executeIdleVariant()
}

func (c *Controller) variantDelay() time.Duration {
	lo, hi := c.opts.VariantDelayMin, c.opts.VariantDelayMax
	if c.touch {
		lo, hi = c.opts.TouchVariantDelayMin, c.opts.TouchVariantDelayMax
	}
	delay := lo
	if span := hi - lo; span > 0 {
		delay += time.Duration(c.rng.Int64N(int64(span)))
	}
	return delay
}

func (c *Controller) scheduleIdleVariant() {
	c.clearIdleVariant()
	if c.current != Idle || !c.idleVariantAllowed() || len(c.idleVariantPool()) == 0 {
		return
	}

	delay := c.variantDelay()
	if now := c.loop.Now(); c.variantCooldownTo.After(now) {
		delay += c.variantCooldownTo.Sub(now)
	}

	c.idleVariantTask = c.tasks.After(delay, func() {
		c.idleVariantTask = nil
		if c.current != Idle || !c.idleVariantAllowed() {
			return
		}
		c.executeIdleVariant()
	})
}

func (c *Controller) clearIdleVariant() {
	c.idleVariantTask.Cancel()
	c.idleVariantTask = nil
}

// IdleVariantScheduled reports whether an idle flourish is armed.
func (c *Controller) IdleVariantScheduled() bool {
	return c.idleVariantTask.Pending()
}

// scheduleSleepTimer arms the long-idle to sleep escalation.
func (c *Controller) scheduleSleepTimer() {
	c.cancelSleepTimer()
	if c.mobile || c.destroyed || c.current != IdleLong || !c.Available(Sleep) {
		return
	}
	c.sleepTask = c.tasks.After(c.opts.SleepAfter, func() {
		c.sleepTask = nil
		if c.current != IdleLong {
			return
		}
		if !c.CanInterrupt(Sleep) {
			c.scheduleSleepTimer()
			return
		}
		c.PlaySleepSequence()
	})
}

func (c *Controller) cancelSleepTimer() {
	c.sleepTask.Cancel()
	c.sleepTask = nil
}

func (c *Controller) linearDuration(s State) time.Duration {
	n := len(c.seqs[s].Frames)
	if n == 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Second) / max(c.fpsFor(s), 1))
}

// PlayLoopingState plays s for the given number of passes, then moves to
// fallback (or the state's own fallback when fallback is None).
func (c *Controller) PlayLoopingState(s State, loops int, fallback State) {
	if c.destroyed {
		return
	}
	selected := c.resolveVariant(s)
	if !c.Available(selected) {
		return
	}
	if loops < 1 {
		loops = 1
	}

	// Non-looping sequences end on their own; looping ones need a timeout.
	var d time.Duration
	if c.meta.Get(selected).Loop {
		d = time.Duration(loops)*c.linearDuration(selected) + loopingSlack
	}
	c.PlayTransientState(selected, d, fallback)
}

// PlayTransientState enters s and arms its fallback. A positive d also
// forces the fallback after max(d, 1s) if s is still current by then.
func (c *Controller) PlayTransientState(s State, d time.Duration, fallback State) {
	if c.destroyed || !c.Available(s) || !c.CanInterrupt(s) {
		return
	}

	c.registerInteraction()
	c.preloadState(s, true)
	c.setState(s, false)
	if c.current != s {
		return
	}
	if fallback != None {
		c.armOverride(s, fallback)
	}

	if d > 0 {
		var task *sched.Task
		task = c.tasks.After(max(transientMinDuration, d), func() {
			c.dropTransient(task)
			if c.destroyed || c.current != s {
				return
			}
			// The timeout exits s regardless of priority, like a finished sequence.
			next := c.resolveFallback(s)
			if next == s && c.Available(Idle) {
				next = Idle
			}
			if !c.setState(next, false) {
				c.frameIndex = 0
			}
		})
		c.transientTasks = append(c.transientTasks, task)
	}
}

func (c *Controller) dropTransient(t *sched.Task) {
	for i, task := range c.transientTasks {
		if task == t {
			c.transientTasks = append(c.transientTasks[:i], c.transientTasks[i+1:]...)
			return
		}
	}
}

// WaveOptions shapes PlayWaveSequence.
type WaveOptions struct {
	// EnsureStanding stands the character up before waving.
	EnsureStanding bool
	// Fallback is where to go after waving. None means Idle.
	Fallback State
	// SitAfter sits down after waving when a sit-down sequence exists.
	SitAfter bool
}

// PlayWaveSequence waves, optionally standing up first and sitting down
// afterwards.
func (c *Controller) PlayWaveSequence(opts WaveOptions) bool {
	if c.destroyed || c.mobile || !c.Available(Wave) {
		return false
	}

	final := opts.Fallback
	if final == None {
		final = Idle
	}
	if opts.SitAfter && c.Available(SitDown) {
		final = SitDown
	}
	c.armOverride(Wave, final)

	if opts.EnsureStanding && !IsStanding(c.current) {
		if c.Available(StandUp) && c.CanInterrupt(StandUp) {
			c.PlayTransientState(StandUp, c.linearDuration(StandUp), Wave)
			return true
		}
		if c.Available(Hover) && c.CanInterrupt(Hover) {
			c.PlayLoopingState(Hover, 1, Wave)
			return true
		}
	}

	c.Trigger(Wave, TriggerOptions{Immediate: true})
	return true
}

// PlaySleepSequence falls asleep through the intro when there is one.
func (c *Controller) PlaySleepSequence() bool {
	if c.destroyed || c.mobile {
		return false
	}
	if c.Available(SleepIntro) {
		pad := time.Duration(float64(sleepIntroPadFrames) * float64(time.Second) / max(c.fpsFor(SleepIntro), 1))
		c.PlayTransientState(SleepIntro, c.linearDuration(SleepIntro)+pad, Sleep)
		return true
	}
	if c.Available(Sleep) {
		c.Trigger(Sleep, TriggerOptions{Immediate: true})
		return true
	}
	return false
}
