package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once after delay has passed without another Trigger.
// Repeated triggers collapse into one pending call.
type Debouncer struct {
	mu      sync.Mutex
	delay   time.Duration
	fn      func()
	timer   *time.Timer
	gen     uint64
	pending bool
}

// New creates a new Debouncer
func New(delay time.Duration, fn func()) *Debouncer {
	return &Debouncer{
		delay: delay,
		fn:    fn,
	}
}

// Trigger schedules fn, cancelling any call that is still pending
func (d *Debouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}

	d.gen++
	gen := d.gen
	d.pending = true
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen || !d.pending {
			d.mu.Unlock()
			return
		}
		d.pending = false
		d.timer = nil
		d.mu.Unlock()

		d.fn()
	})
}

// Cancel drops the pending call and reports whether there was one
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.gen++
	wasPending := d.pending
	d.pending = false
	return wasPending
}

// Flush runs the pending call immediately, if any
func (d *Debouncer) Flush() {
	if d.Cancel() {
		d.fn()
	}
}

// Pending reports whether a call is scheduled
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}
