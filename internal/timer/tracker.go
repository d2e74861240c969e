package timer

import (
	"sync"
	"time"
)

// Tick is delivered once per elapsed second while the tracker runs.
type Tick struct {
	Elapsed int
	Marker  Marker
	Crossed Marker
}

// Ticker is the subset of time.Ticker consumed by Tracker.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFunc creates a ticker with the given period.
type TickerFunc func(time.Duration) Ticker

type stdTicker struct {
	t *time.Ticker
}

func (s stdTicker) C() <-chan time.Time { return s.t.C }
func (s stdTicker) Stop()               { s.t.Stop() }

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return stdTicker{t: time.NewTicker(d)}
}

// Tracker counts capture seconds and stops itself at the hard cap.
//
// The handler runs on the tracker goroutine. It may call Stop only while
// handling the cap tick; the tracker is already stopped by then.
type Tracker struct {
	handle    func(Tick)
	newTicker TickerFunc

	deliverMu sync.Mutex

	mu      sync.Mutex
	elapsed int
	gen     uint64
	running bool
	stop    chan struct{}
}

// NewTracker builds a stopped tracker. A nil newTicker uses wall-clock ticks.
func NewTracker(handle func(Tick), newTicker TickerFunc) *Tracker {
	if handle == nil {
		handle = func(Tick) {}
	}
	if newTicker == nil {
		newTicker = NewTicker
	}
	return &Tracker{handle: handle, newTicker: newTicker}
}

// Start resets elapsed to zero and begins ticking.
func (t *Tracker) Start() {
	t.mu.Lock()
	if t.running {
		close(t.stop)
	}
	t.gen++
	gen := t.gen
	t.elapsed = 0
	t.running = true
	stop := make(chan struct{})
	t.stop = stop
	ticker := t.newTicker(time.Second)
	t.mu.Unlock()

	go t.loop(gen, ticker, stop)
}

// Stop cancels further ticks. It returns after any in-flight delivery finishes.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	close(t.stop)
	t.mu.Unlock()

	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()
}

// Elapsed returns whole seconds counted since the last Start.
func (t *Tracker) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Running reports whether ticks are still being counted.
func (t *Tracker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Tracker) loop(gen uint64, ticker Ticker, stop <-chan struct{}) {
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			if done := t.deliver(gen); done {
				return
			}
		}
	}
}

// deliver advances one second and runs the handler. It reports whether the
// loop must exit.
func (t *Tracker) deliver(gen uint64) bool {
	t.deliverMu.Lock()
	defer t.deliverMu.Unlock()

	t.mu.Lock()
	if !t.running || t.gen != gen {
		t.mu.Unlock()
		return true
	}
	t.elapsed++
	tick := Tick{Elapsed: t.elapsed, Marker: MarkerAt(t.elapsed), Crossed: CrossedAt(t.elapsed)}
	capped := tick.Elapsed >= CapSeconds
	if capped {
		t.running = false
		close(t.stop)
	}
	t.mu.Unlock()

	t.handle(tick)
	return capped
}
