package sched

import (
	"sync"
	"time"
)

// Clock supplies the current time to a Loop.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system monotonic clock.
type RealClock struct{}

// Now returns time.Now().
func (RealClock) Now() time.Time {
	return time.Now()
}

// MockClock is a manually advanced clock for tests.
type MockClock struct {
	mu  sync.RWMutex
	now time.Time
}

// NewMockClock creates a mock clock starting at start.
func NewMockClock(start time.Time) *MockClock {
	return &MockClock{now: start}
}

// Now returns the mocked time.
func (m *MockClock) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Set moves the clock to t.
func (m *MockClock) Set(t time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = t
}

// Advance moves the clock forward by d.
func (m *MockClock) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = m.now.Add(d)
}

// Simulate advances c by total in increments of tick, running one loop turn
// after each increment. It is how tests stand in for a display refresh.
func Simulate(l *Loop, c *MockClock, total, tick time.Duration) {
	if tick <= 0 {
		tick = 16 * time.Millisecond
	}
	for elapsed := time.Duration(0); elapsed < total; elapsed += tick {
		step := tick
		if rest := total - elapsed; rest < step {
			step = rest
		}
		c.Advance(step)
		l.Step()
	}
}
