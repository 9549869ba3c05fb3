// Package subscription implements the sustained subscription driver (spec
// §4.9, C9): it wraps the lifetime of a Matter subscription so it survives
// peer disconnections, reprobing, rebootstrapping, and resubscribing as
// needed.
package subscription

import (
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/joshuafuller/matterlink/internal/cancel"
	"github.com/joshuafuller/matterlink/internal/clock"
	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/retry"
)

// ActiveSubscription is the minimal view of an underlying subscription the
// driver needs: an id to report, a channel that fires on close, and the
// negotiated parameters spec §4.9 says fall through from it.
type ActiveSubscription interface {
	ID() string
	Closed() <-chan struct{}
	MaxInterval() time.Duration
	InteractionModelRevision() uint8
}

// Timing holds the delays used to classify a failed probe/read/subscribe
// attempt, mirroring the peer connection orchestrator's table (spec §4.9
// step 1: "classify errors the same way as §4.8's handler").
type Timing struct {
	DelayAfterNetworkError   time.Duration
	DelayAfterPeerError      time.Duration
	DelayAfterUnhandledError time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.DelayAfterNetworkError == 0 {
		t.DelayAfterNetworkError = 5 * time.Second
	}
	if t.DelayAfterPeerError == 0 {
		t.DelayAfterPeerError = 5 * time.Second
	}
	if t.DelayAfterUnhandledError == 0 {
		t.DelayAfterUnhandledError = 10 * time.Second
	}
	return t
}

// DefaultRetrySchedule is the schedule from spec §4.9: "initial 15s, max
// 1h, factor 2, jitter 0.25, no timeout".
func DefaultRetrySchedule(entropy clock.Entropy) retry.Params {
	return retry.Params{
		InitialInterval: 15 * time.Second,
		MaximumInterval: time.Hour,
		BackoffFactor:   2,
		JitterFactor:    0.25,
		Entropy:         entropy,
	}
}

// Hooks are the caller-supplied operations a Driver drives (spec §4.9):
// Probe validates a session is still usable, Read performs a one-shot
// interaction-model read, Subscribe establishes the underlying
// subscription, and Updated/RefreshRequest are the report/request-rebuild
// callbacks.
type Hooks[Req any, Rep any] struct {
	Probe          func() error
	Read           func(req Req) (Rep, error)
	Subscribe      func(req Req) (ActiveSubscription, error)
	Updated        func(Rep)
	RefreshRequest func(req Req) Req // optional
}

// Driver wraps the lifetime of one subscription per spec §4.9's state
// machine: {subscription?, retries, active, inactive}.
type Driver[Req any, Rep any] struct {
	hooks   Hooks[Req, Rep]
	timing  Timing
	entropy clock.Entropy
	logger  *slog.Logger

	mu                sync.Mutex
	trusted           bool
	bootstrapWithRead bool
	active            bool
	inactive          bool
	subscriptionID    string
	current           ActiveSubscription
}

// Options configures a Driver.
type Options struct {
	Timing            Timing
	Entropy           clock.Entropy
	Logger            *slog.Logger
	BootstrapWithRead bool
}

// New constructs a Driver bound to hooks.
func New[Req any, Rep any](hooks Hooks[Req, Rep], opts Options) *Driver[Req, Rep] {
	if opts.Entropy == nil {
		opts.Entropy = clock.SystemEntropy{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Driver[Req, Rep]{
		hooks:             hooks,
		timing:            opts.Timing.withDefaults(),
		entropy:           opts.Entropy,
		logger:            opts.Logger,
		bootstrapWithRead: opts.BootstrapWithRead,
	}
}

// SubscriptionID returns the id of the currently-active underlying
// subscription, or "" if none.
func (d *Driver[Req, Rep]) SubscriptionID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.subscriptionID
}

// Active reports whether a subscription is presently live.
func (d *Driver[Req, Rep]) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active
}

// MaxInterval falls through to the current underlying subscription, or the
// Matter default of 60s documented for "no active subscription yet".
func (d *Driver[Req, Rep]) MaxInterval() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		return d.current.MaxInterval()
	}
	return 60 * time.Second
}

// InteractionModelRevision falls through to the current underlying
// subscription, or the baseline revision (1) when none is active.
func (d *Driver[Req, Rep]) InteractionModelRevision() uint8 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.current != nil {
		return d.current.InteractionModelRevision()
	}
	return 1
}

// Run drives the subscription loop (spec §4.9 steps 1-7) until abort fires.
// request is the initial subscribe request; if RefreshRequest is set, it is
// consulted before every resubscribe to fold in refreshed data-version
// filters.
func (d *Driver[Req, Rep]) Run(abort *cancel.Abort, request Req) {
	schedule := retry.New(DefaultRetrySchedule(d.entropy))

	for !abort.Aborted() {
		if err := d.runOnce(abort, &request); err != nil {
			if abort.Aborted() {
				return
			}
			d.logger.Warn("subscription attempt failed", "error", err)
			wait := d.classify(err)
			if wait == 0 {
				continue
			}
			if !abort.Sleep(wait) {
				return
			}
			continue
		}

		d.setActive(true)

		select {
		case <-d.current.Closed():
		case <-abort.Context().Done():
			return
		}

		d.logger.Info("subscription closed, will resubscribe", "subscription_id", d.subscriptionID)
		d.setActive(false)
		d.mu.Lock()
		d.trusted = false
		d.mu.Unlock()

		interval, ok := schedule.Next()
		if !ok {
			return
		}
		if !abort.Sleep(interval) {
			return
		}
	}
}

// runOnce implements spec §4.9 steps 1-4: probe (if untrusted), bootstrap
// read (if requested), request refresh, then subscribe.
func (d *Driver[Req, Rep]) runOnce(abort *cancel.Abort, request *Req) error {
	d.mu.Lock()
	trusted := d.trusted
	bootstrap := d.bootstrapWithRead
	d.mu.Unlock()

	if !trusted && d.hooks.Probe != nil {
		if err := d.hooks.Probe(); err != nil {
			return err
		}
		d.mu.Lock()
		d.trusted = true
		d.mu.Unlock()
	}

	if bootstrap && d.hooks.Read != nil {
		report, err := d.hooks.Read(*request)
		if err != nil {
			return err
		}
		if d.hooks.Updated != nil {
			d.hooks.Updated(report)
		}
		d.mu.Lock()
		d.bootstrapWithRead = false
		d.mu.Unlock()
	}

	if d.hooks.RefreshRequest != nil {
		*request = d.hooks.RefreshRequest(*request)
	}

	sub, err := d.hooks.Subscribe(*request)
	if err != nil {
		return err
	}

	d.mu.Lock()
	d.current = sub
	d.subscriptionID = sub.ID()
	d.mu.Unlock()
	return nil
}

func (d *Driver[Req, Rep]) setActive(active bool) {
	d.mu.Lock()
	d.active = active
	d.inactive = !active
	d.mu.Unlock()
}

// classify mirrors the peer connection orchestrator's error table (spec
// §4.8 step 9, reused per §4.9 step 1).
func (d *Driver[Req, Rep]) classify(err error) time.Duration {
	var chanErr *errors.ChannelStatusError
	if stderrors.As(err, &chanErr) {
		if chanErr.General == statusBusy && chanErr.HasDelay {
			jitter := time.Duration(clock.NextFloat01(d.entropy) * float64(d.timing.DelayAfterNetworkError))
			return time.Duration(chanErr.BusyDelay)*time.Millisecond + jitter
		}
		if chanErr.NoSharedTrustRoots {
			d.logger.Warn("no shared trust roots; retrying immediately", "error", err)
			return 0
		}
		return d.timing.DelayAfterPeerError
	}

	var transient *errors.TransientPeerError
	if stderrors.As(err, &transient) {
		return d.timing.DelayAfterNetworkError
	}

	d.logger.Warn("unhandled error during subscription attempt", "error", err)
	return d.timing.DelayAfterUnhandledError
}

const statusBusy = 3 // Matter Core spec general-status "BUSY"
