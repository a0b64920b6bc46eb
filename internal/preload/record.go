package preload

import (
	"image"
	"sync/atomic"
)

// Record is the shared load state of one frame resource. Every caller that
// ensures the same id receives the same Record.
type Record struct {
	id      string
	done    chan struct{}
	high    atomic.Bool
	claimed atomic.Bool
	settled atomic.Bool

	// Written once before done is closed.
	img image.Image
	err error
}

func newRecord(id string, high bool) *Record {
	r := &Record{id: id, done: make(chan struct{})}
	r.high.Store(high)
	return r
}

// ID returns the resource identifier.
func (r *Record) ID() string { return r.id }

// HighPriority reports whether the fetch was requested (or upgraded) to high priority.
func (r *Record) HighPriority() bool { return r.high.Load() }

// Settled reports whether the fetch finished, successfully or not.
func (r *Record) Settled() bool { return r.settled.Load() }

// Ready reports whether the image decoded successfully.
func (r *Record) Ready() bool { return r.settled.Load() && r.err == nil }

// Failed reports whether the fetch finished with an error. Failures are final.
func (r *Record) Failed() bool { return r.settled.Load() && r.err != nil }

// Done is closed once the record settles.
func (r *Record) Done() <-chan struct{} { return r.done }

// Image returns the decoded image, or nil until the record is ready.
func (r *Record) Image() image.Image {
	if !r.Ready() {
		return nil
	}
	return r.img
}

// Err returns the fetch error once settled.
func (r *Record) Err() error {
	if !r.settled.Load() {
		return nil
	}
	return r.err
}

func (r *Record) settle(img image.Image, err error) {
	r.img = img
	r.err = err
	r.settled.Store(true)
	close(r.done)
}
