package sched

import "time"

// Group owns the tasks scheduled by one component so they can be cancelled
// together. After CancelAll the group is closed: new tasks are inert and
// guarded callbacks do nothing.
type Group struct {
	loop   *Loop
	tasks  map[*Task]struct{}
	closed bool
}

// NewGroup creates a task group on l.
func NewGroup(l *Loop) *Group {
	return &Group{loop: l, tasks: make(map[*Task]struct{})}
}

// Loop returns the loop the group schedules on.
func (g *Group) Loop() *Loop {
	return g.loop
}

// Closed reports whether CancelAll has been called.
func (g *Group) Closed() bool {
	return g.closed
}

// Guard wraps fn so that it only runs while the group is open. The check
// happens when the wrapper is invoked.
func (g *Group) Guard(fn func()) func() {
	return func() {
		if g.closed {
			return
		}
		fn()
	}
}

func (g *Group) track(t *Task) *Task {
	if g.closed {
		t.Cancel()
		return t
	}
	g.tasks[t] = struct{}{}
	t.onExit = g.forget
	return t
}

func (g *Group) forget(t *Task) {
	delete(g.tasks, t)
}

// After schedules a guarded timer.
func (g *Group) After(d time.Duration, fn func()) *Task {
	return g.track(g.loop.After(d, g.Guard(fn)))
}

// RequestFrame schedules a guarded frame callback.
func (g *Group) RequestFrame(fn func(now time.Time)) *Task {
	return g.track(g.loop.RequestFrame(func(now time.Time) {
		if g.closed {
			return
		}
		fn(now)
	}))
}

// Idle schedules a guarded idle task.
func (g *Group) Idle(fn func(), timeout time.Duration) *Task {
	return g.track(g.loop.Idle(g.Guard(fn), timeout))
}

// Post hands fn to the loop from any goroutine; it is dropped if the group
// has been closed by the time it runs.
func (g *Group) Post(fn func()) {
	g.loop.Post(g.Guard(fn))
}

// Len returns the number of outstanding tasks.
func (g *Group) Len() int {
	return len(g.tasks)
}

// CancelAll cancels every outstanding task and closes the group.
func (g *Group) CancelAll() {
	g.closed = true
	for t := range g.tasks {
		t.onExit = nil
		t.Cancel()
	}
	clear(g.tasks)
}
