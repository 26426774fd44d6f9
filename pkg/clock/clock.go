// Package clock is the time source for the suggestion engine.
//
// Every delay the engine schedules (debounce windows, lookup timeouts, retry
// backoff, cache sweeps) goes through a Clock and comes back as a Timer whose
// only control is Cancel. Production code uses Real; tests drive a Fake.
package clock

import (
	"context"
	"time"
)

// Timer is a handle to a scheduled callback.
type Timer interface {
	// Cancel prevents the callback from running. It reports false when the
	// callback already ran or the timer was already cancelled.
	Cancel() bool
}

// Clock tells the time and schedules callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
	// Sleep blocks for d or until ctx is done, whichever comes first.
	Sleep(ctx context.Context, d time.Duration) error
}

// Real returns the wall clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

type realTimer struct {
	t *time.Timer
}

func (r realTimer) Cancel() bool {
	return r.t.Stop()
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return realTimer{t: time.AfterFunc(d, fn)}
}

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// OrReal returns c, or the wall clock when c is nil.
func OrReal(c Clock) Clock {
	if c == nil {
		return Real()
	}
	return c
}
