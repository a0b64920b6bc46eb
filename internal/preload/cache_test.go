package preload

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// gatedFetcher blocks each fetch until its id is released.
type gatedFetcher struct {
	mu      sync.Mutex
	gates   map[string]chan struct{}
	fail    map[string]bool
	calls   map[string]int
	order   []string
	started chan string
}

func newGatedFetcher() *gatedFetcher {
	return &gatedFetcher{
		gates:   make(map[string]chan struct{}),
		fail:    make(map[string]bool),
		calls:   make(map[string]int),
		started: make(chan string, 64),
	}
}

func (f *gatedFetcher) gate(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gates[id]
	if !ok {
		g = make(chan struct{})
		f.gates[id] = g
	}
	return g
}

func (f *gatedFetcher) release(id string) { close(f.gate(id)) }

func (f *gatedFetcher) Fetch(ctx context.Context, id string) (image.Image, error) {
	f.mu.Lock()
	f.calls[id]++
	f.order = append(f.order, id)
	fail := f.fail[id]
	f.mu.Unlock()
	f.started <- id

	select {
	case <-f.gate(id):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if fail {
		return nil, errors.New("decode failed")
	}
	return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (f *gatedFetcher) callCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[id]
}

func waitDone(t *testing.T, r *Record) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("record %s never settled", r.ID())
	}
}

func TestEnsureDeduplicates(t *testing.T) {
	f := newGatedFetcher()
	c := New(f, WithWorkers(4))
	defer c.Close()

	const n = 32
	recs := make([]*Record, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			recs[i] = c.Ensure("hover/0001.png", Options{HighPriority: i%2 == 0})
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		if recs[i] != recs[0] {
			t.Fatal("expected every caller to receive the same record")
		}
	}

	f.release("hover/0001.png")
	waitDone(t, recs[0])

	if got := f.callCount("hover/0001.png"); got != 1 {
		t.Errorf("expected exactly 1 fetch, got %d", got)
	}
	for _, r := range recs {
		if !r.Ready() || r.Failed() {
			t.Fatal("expected every caller to observe ready")
		}
	}
	if c.Stats().Fetches != 1 {
		t.Errorf("expected Stats.Fetches 1, got %d", c.Stats().Fetches)
	}
}

func TestFailureIsPermanent(t *testing.T) {
	f := newGatedFetcher()
	f.fail["wave/0001.png"] = true
	c := New(f, WithWorkers(1))
	defer c.Close()

	r := c.Ensure("wave/0001.png", Options{})
	f.release("wave/0001.png")
	waitDone(t, r)

	if !r.Failed() || r.Ready() {
		t.Fatalf("expected failed record, got ready=%v failed=%v", r.Ready(), r.Failed())
	}
	if r.Image() != nil {
		t.Error("expected nil image on failure")
	}

	again := c.Ensure("wave/0001.png", Options{HighPriority: true})
	if again != r || !again.Failed() {
		t.Error("expected the same failed record without retry")
	}
	if got := f.callCount("wave/0001.png"); got != 1 {
		t.Errorf("expected 1 fetch, got %d", got)
	}
}

func TestHighPriorityServedFirst(t *testing.T) {
	f := newGatedFetcher()
	c := New(f, WithWorkers(1))
	defer c.Close()

	// Occupy the single worker.
	blocker := c.Ensure("a", Options{})
	<-f.started

	low := c.Ensure("low", Options{})
	high := c.Ensure("high", Options{HighPriority: true})
	upgraded := c.Ensure("later", Options{})
	c.Ensure("later", Options{HighPriority: true})

	f.release("a")
	f.release("high")
	f.release("later")
	f.release("low")
	for _, r := range []*Record{blocker, low, high, upgraded} {
		waitDone(t, r)
	}

	f.mu.Lock()
	order := append([]string(nil), f.order...)
	f.mu.Unlock()

	want := []string{"a", "high", "later", "low"}
	if len(order) != len(want) {
		t.Fatalf("expected fetch order %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected fetch order %v, got %v", want, order)
		}
	}
	if !upgraded.HighPriority() {
		t.Error("expected record to be upgraded")
	}
	if c.Stats().Upgrades != 1 {
		t.Errorf("expected 1 upgrade, got %d", c.Stats().Upgrades)
	}
}

func TestNeverDowngrades(t *testing.T) {
	f := newGatedFetcher()
	c := New(f, WithWorkers(1))
	defer c.Close()

	r := c.Ensure("x", Options{HighPriority: true})
	c.Ensure("x", Options{HighPriority: false})
	if !r.HighPriority() {
		t.Error("expected priority to stay high")
	}
	f.release("x")
	waitDone(t, r)
}

func TestLookupDoesNotConstruct(t *testing.T) {
	c := New(newGatedFetcher())
	defer c.Close()

	if _, ok := c.Lookup("missing"); ok {
		t.Error("expected lookup miss")
	}
	if c.Stats().Records != 0 {
		t.Errorf("expected no records, got %d", c.Stats().Records)
	}
}

func TestNoFetcher(t *testing.T) {
	c := New(nil)
	r := c.Ensure("x", Options{})
	if !errors.Is(r.Err(), ErrNoFetcher) {
		t.Errorf("expected ErrNoFetcher, got %v", r.Err())
	}
}

func TestCloseSettlesQueued(t *testing.T) {
	f := newGatedFetcher()
	c := New(f, WithWorkers(1))

	first := c.Ensure("first", Options{})
	<-f.started
	queued := c.Ensure("queued", Options{})

	c.Close()
	waitDone(t, first)
	waitDone(t, queued)

	if !errors.Is(queued.Err(), ErrClosed) {
		t.Errorf("expected ErrClosed for queued record, got %v", queued.Err())
	}
	if !errors.Is(first.Err(), context.Canceled) {
		t.Errorf("expected context.Canceled for in-flight record, got %v", first.Err())
	}
}

func TestWait(t *testing.T) {
	f := newGatedFetcher()
	c := New(f)
	defer c.Close()

	r := c.Ensure("x", Options{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := Wait(ctx, r); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}

	f.release("x")
	if err := Wait(context.Background(), r); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
}

func TestSharedIsSingleton(t *testing.T) {
	var calls atomic.Int32
	fetch := FetcherFunc(func(ctx context.Context, id string) (image.Image, error) {
		calls.Add(1)
		return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
	})

	// Other tests in the package never touch Shared, so Configure succeeds.
	if err := Configure(fetch, 2, nil); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	a := Shared()
	b := Shared()
	if a != b {
		t.Fatal("expected Shared to return one cache")
	}
	if err := Configure(fetch, 2, nil); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}

	waitDone(t, a.Ensure("s", Options{}))
	waitDone(t, b.Ensure("s", Options{}))
	if calls.Load() != 1 {
		t.Errorf("expected 1 fetch through the shared cache, got %d", calls.Load())
	}
}
