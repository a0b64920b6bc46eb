// Package sched is a single-threaded cooperative event loop.
//
// Every callback scheduled on a Loop runs on the goroutine that calls Step
// (or Run). Timers, frame callbacks and idle tasks may only be scheduled from
// that goroutine; other goroutines hand work over with Post.
package sched

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DefaultIdleBudget bounds how long idle tasks may run in one turn.
const DefaultIdleBudget = 4 * time.Millisecond

// Loop runs timers, frame callbacks and idle tasks in deterministic order.
type Loop struct {
	clock      Clock
	idleBudget time.Duration

	mu    sync.Mutex
	inbox []func()
	wake  chan struct{}

	seq    uint64
	timers timerHeap
	frames []*Task
	idle   []*Task
	turns  uint64
}

// Option configures a Loop.
type Option func(*Loop)

// WithIdleBudget sets the per-turn idle task budget.
func WithIdleBudget(d time.Duration) Option {
	return func(l *Loop) { l.idleBudget = d }
}

// New creates a loop reading time from clock. A nil clock means RealClock.
func New(clock Clock, opts ...Option) *Loop {
	if clock == nil {
		clock = RealClock{}
	}
	l := &Loop{
		clock:      clock,
		idleBudget: DefaultIdleBudget,
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Now returns the loop clock's current time.
func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

func (l *Loop) nextSeq() uint64 {
	l.seq++
	return l.seq
}

// After schedules fn to run once d has elapsed.
func (l *Loop) After(d time.Duration, fn func()) *Task {
	if d < 0 {
		d = 0
	}
	t := &Task{kind: kindTimer, fn: fn, at: l.clock.Now().Add(d), seq: l.nextSeq(), loop: l}
	heap.Push(&l.timers, t)
	return t
}

// removeTimer drops a cancelled timer from the heap.
func (l *Loop) removeTimer(t *Task) {
	if t.index < 0 || t.index >= len(l.timers) || l.timers[t.index] != t {
		return
	}
	heap.Remove(&l.timers, t.index)
}

// RequestFrame schedules fn for the next frame turn. Callbacks requested
// while frame callbacks are running wait for the following turn.
func (l *Loop) RequestFrame(fn func(now time.Time)) *Task {
	t := &Task{kind: kindFrame, frameFn: fn, seq: l.nextSeq()}
	l.frames = append(l.frames, t)
	return t
}

// Idle schedules fn to run when a turn has spare budget, or unconditionally
// once timeout has elapsed. A zero timeout waits for spare budget only.
func (l *Loop) Idle(fn func(), timeout time.Duration) *Task {
	t := &Task{kind: kindIdle, fn: fn, seq: l.nextSeq()}
	if timeout > 0 {
		t.at = l.clock.Now().Add(timeout)
	}
	l.idle = append(l.idle, t)
	return t
}

// Post queues fn to run at the start of the next turn. It is safe to call
// from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.inbox = append(l.inbox, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Step runs one turn: posted functions, due timers, frame callbacks and
// then idle tasks. It returns how many callbacks ran.
func (l *Loop) Step() int {
	l.turns++
	ran := 0

	l.mu.Lock()
	inbox := l.inbox
	l.inbox = nil
	l.mu.Unlock()
	for _, fn := range inbox {
		fn()
		ran++
	}

	now := l.clock.Now()

	// Timers scheduled by a timer callback run on a later turn.
	var due []*Task
	for l.timers.Len() > 0 && !l.timers[0].at.After(now) {
		due = append(due, heap.Pop(&l.timers).(*Task))
	}
	for _, t := range due {
		if t.claim() {
			t.fn()
			ran++
		}
	}

	frames := l.frames
	l.frames = nil
	for _, t := range frames {
		if t.claim() {
			t.frameFn(now)
			ran++
		}
	}

	ran += l.runIdle(now)
	return ran
}

func (l *Loop) runIdle(now time.Time) int {
	if len(l.idle) == 0 {
		return 0
	}

	queue := l.idle
	l.idle = nil
	deadline := l.clock.Now().Add(l.idleBudget)
	ran := 0

	var keep []*Task
	for _, t := range queue {
		if !t.Pending() {
			continue
		}
		forced := !t.at.IsZero() && !t.at.After(now)
		if !forced && l.clock.Now().After(deadline) {
			keep = append(keep, t)
			continue
		}
		if t.claim() {
			t.fn()
			ran++
		}
	}

	// Tasks queued by idle callbacks stay behind the ones that were deferred.
	l.idle = append(keep, l.idle...)
	return ran
}

// Pending returns the number of timers, frame callbacks and idle tasks that
// have not run or been cancelled.
func (l *Loop) Pending() int {
	n := 0
	for _, t := range l.timers {
		if t.Pending() {
			n++
		}
	}
	for _, t := range l.frames {
		if t.Pending() {
			n++
		}
	}
	for _, t := range l.idle {
		if t.Pending() {
			n++
		}
	}
	return n
}

// Turns returns how many times Step has run.
func (l *Loop) Turns() uint64 {
	return l.turns
}

// Run drives Step every frameInterval, and immediately whenever Post is
// called, until ctx is cancelled.
func (l *Loop) Run(ctx context.Context, frameInterval time.Duration) error {
	if frameInterval <= 0 {
		frameInterval = time.Second / 60
	}
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Step()
		case <-l.wake:
			l.Step()
		}
	}
}
