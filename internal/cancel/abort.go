// Package cancel implements the cooperative cancellation primitive (spec
// §4.2, "Abort handle"): a combined controller/signal/awaitable built on
// context.Context and context.CancelCauseFunc, Go's native equivalent of
// "abort with a reason".
package cancel

import (
	"context"
	"sync"
	"time"

	"github.com/joshuafuller/matterlink/internal/errors"
)

// Options configures a new Abort.
type Options struct {
	// Parents, if set, makes this Abort fire whenever any parent fires. The
	// registration is deregistered on Close.
	Parents []*Abort

	// Timeout, if non-zero, installs a timer that aborts with OnTimeout's
	// reason (or a TimeoutError if OnTimeout is nil) when it expires.
	Timeout time.Duration

	// OnTimeout overrides the reason reported when Timeout expires.
	OnTimeout error

	// OnAbort, if set, is invoked exactly once when this Abort fires, with
	// the reason it fired for.
	OnAbort func(reason error)
}

// Abort is a cooperative cancellation handle: a context.Context paired with
// a cause, usable directly wherever Go code expects a context.Context.
type Abort struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu        sync.Mutex
	closed    bool
	timer     *time.Timer
	deregFns  []func()
	onAbort   func(reason error)
	onAbortFn sync.Once
}

// New creates a root Abort with no parents and no timeout.
func New() *Abort {
	ctx, cancel := context.WithCancelCause(context.Background())
	return &Abort{ctx: ctx, cancel: cancel}
}

// NewWithOptions creates an Abort wired per Options (§4.2 "Construction
// options").
func NewWithOptions(opts Options) *Abort {
	a := New()
	a.onAbort = opts.OnAbort

	for _, p := range opts.Parents {
		p := p
		stop := p.onFire(func(reason error) {
			a.Abort(reason)
		})
		a.deregFns = append(a.deregFns, stop)
	}

	if opts.Timeout > 0 {
		reason := opts.OnTimeout
		if reason == nil {
			reason = &errors.TimeoutError{Operation: "abort"}
		}
		a.timer = time.AfterFunc(opts.Timeout, func() {
			a.Abort(reason)
		})
	}

	return a
}

// Any returns an Abort that fires on the first of signals to fire. The
// caller must Close it to release the parent registrations.
func Any(signals ...*Abort) *Abort {
	return NewWithOptions(Options{Parents: signals})
}

// Context exposes the underlying context.Context, so Abort composes
// directly with anything taking one (net, exec, etc).
func (a *Abort) Context() context.Context { return a.ctx }

// Abort marks the handle aborted with the given reason (nil is legal and
// reported back as context.Canceled-equivalent).
func (a *Abort) Abort(reason error) {
	if reason == nil {
		reason = &errors.AbortedError{}
	}
	a.cancel(reason)
	a.onAbortFn.Do(func() {
		if a.onAbort != nil {
			a.onAbort(reason)
		}
	})
}

// Aborted reports whether the handle has fired.
func (a *Abort) Aborted() bool {
	return a.ctx.Err() != nil
}

// Reason returns the abort reason, or nil if not yet aborted.
func (a *Abort) Reason() error {
	if cause := context.Cause(a.ctx); cause != nil {
		return cause
	}
	return nil
}

// onFire registers fn to run once, as soon as the Abort fires (or
// immediately, in a new goroutine, if it already has). It returns a
// deregistration function.
func (a *Abort) onFire(fn func(reason error)) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-a.ctx.Done():
			fn(a.Reason())
		case <-done:
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}

// Close releases parent registrations and the timeout timer. Idempotent.
// Must be called when Options.Parents or Options.Timeout was used, to
// avoid leaking the backing goroutine/timer.
func (a *Abort) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
	}
	for _, fn := range a.deregFns {
		fn()
	}
}

// Sleep is an abortable sleep: it returns early (with ok=false) if the
// Abort fires before d elapses.
func (a *Abort) Sleep(d time.Duration) (ok bool) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-a.ctx.Done():
		return false
	}
}

// Race waits for either fn to settle or the Abort to fire. On abort it
// returns the zero value and ok=false without surfacing an error — matching
// spec §4.2 ("on abort returns undefined, does not throw").
func Race[T any](a *Abort, fn func(ctx context.Context) (T, error)) (T, bool) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(a.ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		if r.err != nil {
			var zero T
			return zero, false
		}
		return r.v, true
	case <-a.ctx.Done():
		var zero T
		return zero, false
	}
}

// Attempt is like Race but surfaces the abort reason as an error instead of
// swallowing it (spec §4.2: "as race, but throws the abort reason on
// abort").
func Attempt[T any](a *Abort, fn func(ctx context.Context) (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn(a.ctx)
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-a.ctx.Done():
		var zero T
		reason := a.Reason()
		if reason == nil {
			reason = &errors.AbortedError{}
		}
		return zero, &errors.AbortedError{Reason: reason}
	}
}
