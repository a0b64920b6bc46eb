package character

import "go.uber.org/zap"

// TriggerOptions modifies Trigger.
type TriggerOptions struct {
	// Immediate applies the state now if it may interrupt the current one,
	// and drops the request otherwise. Without it the request is queued.
	Immediate bool
}

func (c *Controller) priority(s State) int {
	return c.meta.Get(s).Priority
}

// CanInterrupt reports whether s may replace the current state. Equal
// priority is a permitted lateral move.
func (c *Controller) CanInterrupt(s State) bool {
	return c.priority(s) >= c.priority(c.current)
}

// request is the single place where interruption and pending-request
// arbitration happen.
func (c *Controller) request(s State, immediate bool) bool {
	if immediate {
		if !c.CanInterrupt(s) {
			return false
		}
		return c.setState(s, true)
	}
	if c.pending == None || c.priority(s) >= c.priority(c.pending) {
		c.pending = s
	}
	return false
}

// evaluate applies the pending request once it is admissible.
func (c *Controller) evaluate() {
	if c.pending == None {
		return
	}
	next := c.pending
	if !c.Available(next) {
		c.pending = None
		return
	}
	if c.CanInterrupt(next) {
		c.pending = None
		c.setState(next, false)
	}
}

// Trigger asks for state s. Unknown or unavailable states are ignored.
func (c *Controller) Trigger(s State, opts TriggerOptions) {
	if c.destroyed {
		return
	}
	selected := c.resolveVariant(s)
	if !c.Available(selected) {
		return
	}
	c.registerInteraction()
	c.request(selected, opts.Immediate)
}

// SetState switches to s directly, bypassing priority. Calling it for the
// state that is already showing its first frame changes nothing except
// idle variant scheduling.
func (c *Controller) SetState(s State) bool {
	if c.destroyed {
		return false
	}
	return c.setState(s, true)
}

func (c *Controller) setState(next State, resetTimer bool) bool {
	if !c.Available(next) {
		return false
	}

	if next == c.current && c.frameIndex == 0 {
		if next == Idle && !c.mobile {
			c.deferIdleVariant = false
			c.scheduleIdleVariant()
		} else {
			c.clearIdleVariant()
		}
		return false
	}

	now := c.loop.Now()
	switch {
	case heavyStates.has(next):
		c.deferIdleVariant = true
		if until := now.Add(idleVariantCooldown); until.After(c.variantCooldownTo) {
			c.variantCooldownTo = until
		}
	default:
		c.deferIdleVariant = false
	}

	c.cancelSleepTimer()

	prev := c.current
	if prev != next {
		delete(c.overrides, prev)
	}
	c.current = next
	c.frameIndex = 0
	c.mount.SetStateLabel(next)

	first := c.seqs[next].Frames[0]
	if !c.frameSettled(first) {
		c.preloadFrame(first, true)
	}
	if resetTimer {
		c.lastInteraction = now
	}

	c.render(false)
	c.bufferFill(next)

	c.log.Debug("state change", zap.Stringer("from", prev), zap.Stringer("to", next))
	for _, fn := range c.listeners {
		fn(prev, next)
	}

	if c.mobile {
		c.clearIdleVariant()
		return true
	}

	c.scheduleSleepTimer()
	if next == Idle {
		c.scheduleIdleVariant()
	} else {
		c.clearIdleVariant()
	}
	return true
}

// complete handles the end of a non-looping sequence.
func (c *Controller) complete() {
	next := c.resolveFallback(c.current)
	if !c.setState(next, false) {
		c.frameIndex = 0
	}
}

// resolveFallback picks where a finished state goes: an armed override,
// else its fallback chain, else idle, else any looping state.
func (c *Controller) resolveFallback(s State) State {
	if target, ok := c.overrides[s]; ok {
		delete(c.overrides, s)
		if c.Available(target) {
			return target
		}
	}

	var seen stateSet
	target := c.meta.Get(s).Fallback
	for target.Valid() && !seen.has(target) {
		if c.Available(target) {
			return target
		}
		seen[target] = true
		target = c.meta.Get(target).Fallback
	}

	if c.Available(Idle) {
		return Idle
	}
	return c.firstLooping()
}

func (c *Controller) resolveVariant(s State) State {
	variants := c.opts.Variants[s]
	if len(variants) == 0 {
		return s
	}
	choices := []State{s}
	for _, v := range variants {
		if c.Available(v) {
			choices = append(choices, v)
		}
	}
	if len(choices) == 1 {
		return s
	}
	return choices[c.rng.IntN(len(choices))]
}

// armOverride sets the eventual destination of s.
func (c *Controller) armOverride(s, target State) {
	if target == None || !c.Available(target) {
		delete(c.overrides, s)
		return
	}
	c.overrides[s] = target
}

// Override returns the destination armed for s, or None.
func (c *Controller) Override(s State) State {
	if t, ok := c.overrides[s]; ok {
		return t
	}
	return None
}
