// Package debounce delays a task until its trigger has been quiet for a fixed interval.
package debounce

import (
	"context"
	"sync"
	"time"
)

// DefaultDelay is the quiet period used for search-as-you-type.
const DefaultDelay = 500 * time.Millisecond

// Debouncer runs at most one pending task. Every Trigger cancels the previous
// task and schedules a new one; only the last task in a burst runs.
//
// A task that has already started is not interrupted by a later Trigger, so
// results from an older task can still arrive after a newer one was scheduled.
type Debouncer struct {
	delay time.Duration

	mu     sync.Mutex
	timer  *time.Timer
	cancel context.CancelFunc
	gen    uint64
}

// New returns a Debouncer with the given delay. A non-positive delay uses DefaultDelay.
func New(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn to run after the delay. fn receives a context derived
// from ctx that is cancelled if Stop is called before fn is started.
func (d *Debouncer) Trigger(ctx context.Context, fn func(context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopLocked()
	d.gen++
	gen := d.gen

	taskCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		if gen != d.gen || taskCtx.Err() != nil {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.cancel = nil
		d.mu.Unlock()

		defer cancel()
		fn(taskCtx)
	})
}

// Stop cancels any pending task.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopLocked()
	d.gen++
}

// Pending reports whether a task is scheduled but not yet started.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

func (d *Debouncer) stopLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
