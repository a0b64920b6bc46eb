package sched

import (
	"context"
	"reflect"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestLoop() (*Loop, *MockClock) {
	c := NewMockClock(epoch)
	return New(c), c
}

func TestTimerOrdering(t *testing.T) {
	l, c := newTestLoop()
	var got []string

	l.After(30*time.Millisecond, func() { got = append(got, "c") })
	l.After(10*time.Millisecond, func() { got = append(got, "a") })
	l.After(10*time.Millisecond, func() { got = append(got, "b") })

	c.Advance(5 * time.Millisecond)
	l.Step()
	if len(got) != 0 {
		t.Fatalf("expected no timers before deadline, got %v", got)
	}

	c.Advance(30 * time.Millisecond)
	l.Step()

	want := []string{"a", "b", "c"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestTimerScheduledFromTimerRunsNextTurn(t *testing.T) {
	l, _ := newTestLoop()
	count := 0

	l.After(0, func() {
		count++
		l.After(0, func() { count++ })
	})

	l.Step()
	if count != 1 {
		t.Fatalf("expected 1 callback after first turn, got %d", count)
	}
	l.Step()
	if count != 2 {
		t.Errorf("expected 2 callbacks after second turn, got %d", count)
	}
}

func TestCancelCheckedAtExecution(t *testing.T) {
	l, c := newTestLoop()
	ran := false

	task := l.After(10*time.Millisecond, func() { ran = true })
	if !task.Pending() {
		t.Fatal("expected task to be pending")
	}
	if !task.Cancel() {
		t.Error("expected first Cancel to report pending")
	}
	if task.Cancel() {
		t.Error("expected second Cancel to be a no-op")
	}

	c.Advance(time.Second)
	l.Step()
	if ran {
		t.Error("cancelled timer ran")
	}

	var nilTask *Task
	if nilTask.Cancel() || nilTask.Pending() {
		t.Error("nil task should be inert")
	}
}

func TestCancelRemovesTimers(t *testing.T) {
	l, c := newTestLoop()
	var order []int

	var recovery *Task
	for i := 0; i < 500; i++ {
		recovery.Cancel()
		recovery = l.After(4*time.Second, func() { order = append(order, -1) })
	}
	l.After(time.Second, func() { order = append(order, 1) })
	l.After(2*time.Second, func() { order = append(order, 2) })

	if got := len(l.timers); got != 3 {
		t.Fatalf("expected 3 timers in the heap, got %d", got)
	}
	if got := l.Pending(); got != 3 {
		t.Errorf("expected 3 pending, got %d", got)
	}

	c.Advance(5 * time.Second)
	l.Step()
	want := []int{1, 2, -1}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected %v, got %v", want, order)
			break
		}
	}
}

func TestFrameCallbacks(t *testing.T) {
	l, c := newTestLoop()
	var stamps []time.Time

	var tick func(now time.Time)
	tick = func(now time.Time) {
		stamps = append(stamps, now)
		if len(stamps) < 3 {
			l.RequestFrame(tick)
		}
	}
	l.RequestFrame(tick)

	for i := 0; i < 5; i++ {
		c.Advance(16 * time.Millisecond)
		l.Step()
	}

	if len(stamps) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(stamps))
	}
	if d := stamps[1].Sub(stamps[0]); d != 16*time.Millisecond {
		t.Errorf("expected 16ms between frames, got %v", d)
	}
}

func TestIdleTasks(t *testing.T) {
	c := NewMockClock(epoch)
	l := New(c, WithIdleBudget(0))
	ran := 0

	l.Idle(func() { ran++ }, 0)
	l.Idle(func() { ran++ }, 50*time.Millisecond)

	// With a zero budget the mock clock is never "after" the deadline, so
	// both tasks fit in the first turn.
	l.Step()
	if ran != 2 {
		t.Errorf("expected 2 idle tasks to run, got %d", ran)
	}
	if l.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", l.Pending())
	}
}

func TestPostFromGoroutine(t *testing.T) {
	l, _ := newTestLoop()
	done := make(chan struct{})
	ran := false

	go func() {
		l.Post(func() { ran = true })
		close(done)
	}()
	<-done

	l.Step()
	if !ran {
		t.Error("posted function did not run")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l := New(nil)
	ctx, cancel := context.WithCancel(context.Background())
	hit := make(chan struct{})

	l.Post(func() { close(hit) })

	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx, time.Millisecond) }()

	select {
	case <-hit:
	case <-time.After(2 * time.Second):
		t.Fatal("posted function never ran")
	}

	cancel()
	if err := <-errc; err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGroupCancelAll(t *testing.T) {
	l, c := newTestLoop()
	g := NewGroup(l)
	mutations := 0

	g.After(10*time.Millisecond, func() { mutations++ })
	g.RequestFrame(func(time.Time) { mutations++ })
	g.Idle(func() { mutations++ }, time.Second)
	guarded := g.Guard(func() { mutations++ })

	if g.Len() != 3 {
		t.Fatalf("expected 3 tracked tasks, got %d", g.Len())
	}

	g.CancelAll()
	g.Post(func() { mutations++ })
	g.After(0, func() { mutations++ })
	guarded()

	Simulate(l, c, 2*time.Second, 16*time.Millisecond)

	if mutations != 0 {
		t.Errorf("expected zero mutations after CancelAll, got %d", mutations)
	}
	if l.Pending() != 0 {
		t.Errorf("expected no pending loop tasks, got %d", l.Pending())
	}
	if !g.Closed() {
		t.Error("expected group to be closed")
	}
}

func TestGroupForgetsFinishedTasks(t *testing.T) {
	l, c := newTestLoop()
	g := NewGroup(l)

	g.After(5*time.Millisecond, func() {})
	cancelled := g.After(time.Hour, func() {})
	cancelled.Cancel()

	c.Advance(10 * time.Millisecond)
	l.Step()

	if g.Len() != 0 {
		t.Errorf("expected finished and cancelled tasks to be forgotten, got %d", g.Len())
	}
}

func TestMockClock(t *testing.T) {
	c := NewMockClock(epoch)
	c.Advance(time.Minute)
	if got := c.Now(); !got.Equal(epoch.Add(time.Minute)) {
		t.Errorf("expected %v, got %v", epoch.Add(time.Minute), got)
	}
	c.Set(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Errorf("expected %v, got %v", epoch, got)
	}
}
