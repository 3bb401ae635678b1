// Package debounce coalesces bursts of events into a single delayed call.
package debounce

import (
	"sync"
	"time"
)

// Timer runs fn once the delay elapses without another Trigger.
// The zero value is not usable; construct with New.
type Timer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	t       *time.Timer
	gen     uint64
	stopped bool
}

// New returns a Timer for fn. A non-positive delay fires on the next Trigger
// without waiting.
func New(delay time.Duration, fn func()) *Timer {
	return &Timer{delay: delay, fn: fn}
}

// Trigger (re)starts the delay. Pending calls are cancelled.
func (d *Timer) Trigger() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	if d.t != nil {
		d.t.Stop()
	}
	d.gen++
	gen := d.gen
	if d.delay <= 0 {
		d.t = nil
		d.mu.Unlock()
		d.fire(gen)
		return
	}
	d.t = time.AfterFunc(d.delay, func() { d.fire(gen) })
	d.mu.Unlock()
}

// Pending reports whether a call is scheduled.
func (d *Timer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t != nil
}

// Flush runs a pending call immediately. It is a no-op when nothing is pending.
func (d *Timer) Flush() {
	d.mu.Lock()
	if d.t == nil || d.stopped {
		d.mu.Unlock()
		return
	}
	d.t.Stop()
	gen := d.gen
	d.mu.Unlock()
	d.fire(gen)
}

// Stop cancels any pending call. Once Stop returns no new invocation of fn starts.
func (d *Timer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.gen++
	if d.t != nil {
		d.t.Stop()
		d.t = nil
	}
}

func (d *Timer) fire(gen uint64) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.t = nil
	d.gen++
	fn := d.fn
	d.mu.Unlock()
	if fn != nil {
		fn()
	}
}
