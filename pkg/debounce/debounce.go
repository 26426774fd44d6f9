// Package debounce delays values until input goes quiet.
package debounce

import (
	"sync"
	"time"

	"github.com/bastiangx/campuscomplete/pkg/clock"
)

// Profile picks a delay for an input device.
type Profile int

const (
	Keyboard Profile = iota
	Touch
	Batch
)

// Default delays per profile.
const (
	DefaultKeyboardDelay = 300 * time.Millisecond
	DefaultTouchDelay    = 500 * time.Millisecond
	DefaultBatchCap      = 100 * time.Millisecond
)

// Delays holds the configured delay per profile.
type Delays struct {
	Keyboard time.Duration
	Touch    time.Duration
	BatchCap time.Duration
}

// DefaultDelays returns the built-in delays.
func DefaultDelays() Delays {
	return Delays{
		Keyboard: DefaultKeyboardDelay,
		Touch:    DefaultTouchDelay,
		BatchCap: DefaultBatchCap,
	}
}

// For returns the delay for p. Batch callers get the keyboard delay capped
// at BatchCap.
func (d Delays) For(p Profile) time.Duration {
	def := DefaultDelays()
	kb := orDefault(d.Keyboard, def.Keyboard)

	switch p {
	case Touch:
		return orDefault(d.Touch, def.Touch)
	case Batch:
		return min(kb, orDefault(d.BatchCap, def.BatchCap))
	default:
		return kb
	}
}

func (p Profile) String() string {
	switch p {
	case Touch:
		return "touch"
	case Batch:
		return "batch"
	default:
		return "keyboard"
	}
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// Debouncer emits the latest pushed value once delay has passed without a
// newer push. Intermediate values are dropped.
type Debouncer[T any] struct {
	mu      sync.Mutex
	clock   clock.Clock
	delay   time.Duration
	emit    func(T)
	timer   clock.Timer
	pending T
	armed   bool
	seq     uint64
	stopped bool
}

// New creates a debouncer calling emit on the clock's timer goroutine.
func New[T any](clk clock.Clock, delay time.Duration, emit func(T)) *Debouncer[T] {
	return &Debouncer[T]{
		clock: clock.OrReal(clk),
		delay: delay,
		emit:  emit,
	}
}

// Delay returns the quiet period.
func (d *Debouncer[T]) Delay() time.Duration {
	return d.delay
}

// Push replaces the pending value and restarts the timer.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Cancel()
	}
	d.seq++
	seq := d.seq
	d.pending = v
	d.armed = true
	d.timer = d.clock.AfterFunc(d.delay, func() { d.fire(seq) })
}

// Flush emits the pending value now, if any, and reports whether it did.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	v, ok := d.take()
	d.mu.Unlock()

	if ok {
		d.emit(v)
	}
	return ok
}

// Cancel drops the pending value.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.take()
}

// Pending reports whether a value is waiting to be emitted.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.armed
}

// Stop cancels any pending emission and ignores later pushes.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.take()
	d.stopped = true
}

func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if seq != d.seq || !d.armed || d.stopped {
		d.mu.Unlock()
		return
	}
	v, _ := d.take()
	d.mu.Unlock()

	d.emit(v)
}

// take must be called with d.mu held.
func (d *Debouncer[T]) take() (T, bool) {
	var zero T
	if !d.armed {
		return zero, false
	}
	if d.timer != nil {
		d.timer.Cancel()
		d.timer = nil
	}
	v := d.pending
	d.pending = zero
	d.armed = false
	d.seq++
	return v, true
}
