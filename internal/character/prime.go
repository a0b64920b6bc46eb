package character

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/arcadeearth/launchsite/internal/preload"
)

// record returns the instance's reference to a frame record, adopting an
// existing shared record without starting a fetch.
func (c *Controller) record(id string) *preload.Record {
	if rec, ok := c.frames[id]; ok {
		return rec
	}
	rec, ok := c.cache.Lookup(id)
	if !ok {
		return nil
	}
	c.frames[id] = rec
	return rec
}

// frameSettled reports whether playback may move onto id. A frame that
// failed to load counts as settled so a broken file never hangs the loop.
func (c *Controller) frameSettled(id string) bool {
	rec := c.record(id)
	return rec != nil && rec.Settled()
}

func (c *Controller) preloadFrame(id string, high bool) *preload.Record {
	if rec, ok := c.frames[id]; ok && (rec.Settled() || !high || rec.HighPriority()) {
		return rec
	}
	rec := c.cache.Ensure(id, preload.Options{HighPriority: high})
	c.frames[id] = rec
	return rec
}

func (c *Controller) preloadState(s State, high bool) {
	if c.destroyed {
		return
	}
	for _, id := range c.seqs[s].Frames {
		c.preloadFrame(id, high)
	}
}

// bufferFill keeps the frames just ahead of the play cursor loading. The
// next one or two are requested at high priority right away; the rest wait
// for an idle slot.
func (c *Controller) bufferFill(s State) {
	frames := c.seqs[s].Frames
	n := len(frames)
	if n == 0 {
		return
	}
	start := 0
	if s == c.current {
		start = c.frameIndex
	}

	for offset := 0; offset <= bufferAhead; offset++ {
		id := frames[(start+offset)%n]
		if c.frameSettled(id) {
			continue
		}
		if s == c.current && offset <= 1 {
			c.preloadFrame(id, true)
			continue
		}
		c.tasks.Idle(func() { c.preloadFrame(id, false) }, idleTaskTimeout)
	}
}

// waitPrimed waits for every record and reports ErrPrimeFailed when all of
// them failed.
func waitPrimed(ctx context.Context, byState map[State][]*preload.Record) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, recs := range byState {
		g.Go(func() error { return preload.Wait(gctx, recs...) })
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total, failed := 0, 0
	for _, recs := range byState {
		for _, r := range recs {
			total++
			if r.Failed() {
				failed++
			}
		}
	}
	if total > 0 && failed == total {
		return ErrPrimeFailed
	}
	return nil
}

// Prime starts loading seqs into cache before any controller exists. Hero
// states load at high priority for their first frames; everything else is
// queued behind them. It returns once the hero frames have settled, with
// ErrPrimeFailed if none of them loaded.
func Prime(ctx context.Context, cache *preload.Cache, seqs Sequences) error {
	byState := make(map[State][]*preload.Record)
	for _, s := range seqs.States() {
		if !heroStates.has(s) {
			continue
		}
		for i, id := range seqs[s].Frames {
			rec := cache.Ensure(id, preload.Options{HighPriority: i < primerFrames})
			byState[s] = append(byState[s], rec)
		}
	}
	for _, s := range seqs.States() {
		if heroStates.has(s) {
			continue
		}
		for _, id := range seqs[s].Frames {
			cache.Ensure(id, preload.Options{})
		}
	}
	return waitPrimed(ctx, byState)
}
