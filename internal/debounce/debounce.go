// Package debounce provides a generic trailing-edge coalescer: bursts of
// triggers collapse into a single invocation of the wrapped function, executed
// one quiescence window after the last trigger. All callers in the burst share
// that single invocation's result.
package debounce

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned to waiters when the debouncer is stopped before the
// pending invocation fires.
var ErrStopped = errors.New("debounce: stopped")

// Pending is a handle to the shared result of the next invocation. Every
// trigger within one quiescence window returns the same Pending.
type Pending[R any] struct {
	done   chan struct{}
	result R
	err    error
}

// Wait blocks until the invocation completes or ctx is done.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.result, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Done returns a channel closed when the invocation has completed.
func (p *Pending[R]) Done() <-chan struct{} {
	return p.done
}

// Debouncer coalesces triggers into one trailing invocation of fn. Arguments
// are last-call-wins: only the argument of the final trigger in a burst is
// passed to fn. Each new trigger cancels the previously scheduled timer, so
// at most one timer is live at any time.
type Debouncer[A, R any] struct {
	mu      sync.Mutex
	wait    time.Duration
	fn      func(context.Context, A) (R, error)
	timer   *time.Timer
	pending *Pending[R]
	arg     A
}

// New creates a debouncer around fn with the given quiescence window.
func New[A, R any](wait time.Duration, fn func(context.Context, A) (R, error)) *Debouncer[A, R] {
	return &Debouncer[A, R]{
		wait: wait,
		fn:   fn,
	}
}

// Trigger schedules an invocation of fn with arg after the quiescence window,
// replacing any previously scheduled invocation and its argument. The returned
// Pending resolves with the result of the single invocation that eventually
// runs for this burst.
func (d *Debouncer[A, R]) Trigger(arg A) *Pending[R] {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	if d.pending == nil {
		d.pending = &Pending[R]{done: make(chan struct{})}
	}
	d.arg = arg
	d.timer = time.AfterFunc(d.wait, d.fire)
	return d.pending
}

// Flush runs any scheduled invocation immediately instead of waiting out the
// window. Used on shutdown paths (the page-unload analogue). Returns the
// Pending for the flushed invocation, or nil if nothing was scheduled.
func (d *Debouncer[A, R]) Flush() *Pending[R] {
	d.mu.Lock()
	p := d.pending
	if p == nil {
		d.mu.Unlock()
		return nil
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.mu.Unlock()

	// If the timer won the race and is already firing, this call finds no
	// pending work and returns; the concurrent fire resolves p.
	d.fire()
	return p
}

// Stop cancels any scheduled invocation and resolves its waiters with
// ErrStopped. Safe to call multiple times.
func (d *Debouncer[A, R]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.pending != nil {
		d.pending.err = ErrStopped
		close(d.pending.done)
		d.pending = nil
	}
}

// fire executes fn with the last-seen argument and resolves all waiters.
func (d *Debouncer[A, R]) fire() {
	d.mu.Lock()
	p := d.pending
	arg := d.arg
	d.pending = nil
	d.timer = nil
	d.mu.Unlock()

	if p == nil {
		// Stopped or flushed between scheduling and firing.
		return
	}

	p.result, p.err = d.fn(context.Background(), arg)
	close(p.done)
}
