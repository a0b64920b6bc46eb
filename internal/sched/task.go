package sched

import (
	"sync/atomic"
	"time"
)

type taskKind uint8

const (
	kindTimer taskKind = iota
	kindFrame
	kindIdle
)

const (
	taskPending int32 = iota
	taskDone
	taskCancelled
)

// Task is a handle to one scheduled callback. The zero value and nil are
// both inert.
type Task struct {
	kind    taskKind
	fn      func()
	frameFn func(now time.Time)
	at      time.Time // deadline for timers, forced-run time for idle tasks
	seq     uint64
	state   atomic.Int32
	index   int   // position in the timer heap
	loop    *Loop // set for timers so Cancel can drop them from the heap
	onExit  func(*Task)
}

// Cancel prevents the callback from running. It reports whether the task was
// still pending. Calling it more than once is harmless. Like scheduling, it
// must happen on the loop goroutine.
func (t *Task) Cancel() bool {
	if t == nil {
		return false
	}
	if !t.state.CompareAndSwap(taskPending, taskCancelled) {
		return false
	}
	if t.loop != nil {
		t.loop.removeTimer(t)
	}
	if t.onExit != nil {
		t.onExit(t)
	}
	return true
}

// Pending reports whether the callback has neither run nor been cancelled.
func (t *Task) Pending() bool {
	return t != nil && t.state.Load() == taskPending
}

// claim marks the task as run. It fails when the task was cancelled, which
// is checked at execution time rather than when the task was queued.
func (t *Task) claim() bool {
	if !t.state.CompareAndSwap(taskPending, taskDone) {
		return false
	}
	if t.onExit != nil {
		t.onExit(t)
	}
	return true
}

// timerHeap orders timers by deadline, then by scheduling order.
type timerHeap []*Task

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}
