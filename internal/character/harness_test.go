package character

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/arcadeearth/launchsite/internal/preload"
	"github.com/arcadeearth/launchsite/internal/sched"
)

var epoch = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

// frameTick is slightly longer than one 60fps interval, so every loop turn
// advances at most one frame.
const frameTick = 17 * time.Millisecond

type fakeMount struct {
	shows  []string
	labels []State
	clears int
}

func (m *fakeMount) Show(id string, img image.Image) { m.shows = append(m.shows, id) }
func (m *fakeMount) SetStateLabel(s State)           { m.labels = append(m.labels, s) }
func (m *fakeMount) Clear()                          { m.clears++ }

func (m *fakeMount) writes() int { return len(m.shows) + len(m.labels) + m.clears }

func (m *fakeMount) lastShown() string {
	if len(m.shows) == 0 {
		return ""
	}
	return m.shows[len(m.shows)-1]
}

// fakeFetcher completes fetches immediately unless an id is blocked.
type fakeFetcher struct {
	mu      sync.Mutex
	blocked map[string]chan struct{}
	failing map[string]bool
	calls   map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		blocked: make(map[string]chan struct{}),
		failing: make(map[string]bool),
		calls:   make(map[string]int),
	}
}

func (f *fakeFetcher) block(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.blocked[id] = make(chan struct{})
	}
}

func (f *fakeFetcher) fail(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.failing[id] = true
	}
}

func (f *fakeFetcher) release(id string) {
	f.mu.Lock()
	gate, ok := f.blocked[id]
	delete(f.blocked, id)
	f.mu.Unlock()
	if ok {
		close(gate)
	}
}

func (f *fakeFetcher) isBlocked(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blocked[id]
	return ok
}

func (f *fakeFetcher) Fetch(ctx context.Context, id string) (image.Image, error) {
	f.mu.Lock()
	f.calls[id]++
	gate := f.blocked[id]
	failing := f.failing[id]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failing {
		return nil, errors.New("broken frame")
	}
	return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
}

func frameID(s State, i int) string {
	return fmt.Sprintf("test/%s/%04d.png", s, i)
}

// seqsOf builds sequences with the given frame counts.
func seqsOf(counts map[State]int) Sequences {
	seqs := make(Sequences)
	for s, n := range counts {
		frames := make([]string, n)
		for i := range frames {
			frames[i] = frameID(s, i)
		}
		seqs[s] = Sequence{Frames: frames, FPS: DefaultFPS}
	}
	return seqs
}

type harness struct {
	t       *testing.T
	clock   *sched.MockClock
	loop    *sched.Loop
	fetch   *fakeFetcher
	cache   *preload.Cache
	mount   *fakeMount
	c       *Controller
	changes [][2]State
}

type harnessConfig struct {
	blocked []string
	failing []string
	options func(*Options)
}

// newHarness loads every unblocked frame into a private cache, builds a
// controller and runs it until playback has started.
func newHarness(t *testing.T, seqs Sequences, cfg harnessConfig) *harness {
	t.Helper()

	h := &harness{
		t:     t,
		clock: sched.NewMockClock(epoch),
		fetch: newFakeFetcher(),
		mount: &fakeMount{},
	}
	h.loop = sched.New(h.clock)
	h.fetch.block(cfg.blocked...)
	h.fetch.fail(cfg.failing...)
	h.cache = preload.New(h.fetch, preload.WithWorkers(4))
	t.Cleanup(func() {
		for _, id := range cfg.blocked {
			h.fetch.release(id)
		}
		h.cache.Close()
	})

	var warm []*preload.Record
	for _, seq := range seqs {
		for _, id := range seq.Frames {
			if !h.fetch.isBlocked(id) {
				warm = append(warm, h.cache.Ensure(id, preload.Options{}))
			}
		}
	}
	h.wait(warm...)

	opts := Options{
		Loop:  h.loop,
		Mount: h.mount,
		Cache: h.cache,
		Rand:  rand.New(rand.NewPCG(1, 2)),
	}
	if cfg.options != nil {
		cfg.options(&opts)
	}

	c, err := New(seqs, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.c = c
	c.OnStateChange(func(from, to State) {
		h.changes = append(h.changes, [2]State{from, to})
	})

	select {
	case <-c.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("controller never became ready")
	}
	h.loop.Step()
	return h
}

func (h *harness) wait(recs ...*preload.Record) {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := preload.Wait(ctx, recs...); err != nil {
		h.t.Fatalf("waiting for frames: %v", err)
	}
}

// releaseAndWait unblocks a frame and waits until its record settles.
func (h *harness) releaseAndWait(id string) {
	h.t.Helper()
	h.fetch.release(id)
	rec, ok := h.cache.Lookup(id)
	if !ok {
		rec = h.cache.Ensure(id, preload.Options{})
	}
	h.wait(rec)
}

func (h *harness) run(d time.Duration) {
	sched.Simulate(h.loop, h.clock, d, frameTick)
}

func (h *harness) ticks(n int) {
	h.run(time.Duration(n) * frameTick)
}

// nextFrom returns the first state entered from s, or None.
func (h *harness) nextFrom(s State) State {
	for _, ch := range h.changes {
		if ch[0] == s {
			return ch[1]
		}
	}
	return None
}

func (h *harness) entered(s State) bool {
	for _, ch := range h.changes {
		if ch[1] == s {
			return true
		}
	}
	return false
}
