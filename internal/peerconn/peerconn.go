// Package peerconn implements the peer connection orchestrator (spec
// §4.8, C8): producing an authenticated session to a peer by racing a
// stream of discovered addresses, staggered in time, while falling back to
// a last-known address when nothing has been discovered yet.
package peerconn

import (
	"container/heap"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/joshuafuller/matterlink/internal/address"
	"github.com/joshuafuller/matterlink/internal/cancel"
	"github.com/joshuafuller/matterlink/internal/clock"
	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/ipservice"
)

// Timing holds the operator-tunable delays from spec §4.8.
type Timing struct {
	DelayBeforeNextAddress               time.Duration
	MaxDelayBetweenInitialContactRetries time.Duration
	DelayAfterNetworkError               time.Duration
	DelayAfterPeerError                  time.Duration
	DelayAfterUnhandledError             time.Duration
}

// DefaultTiming matches the values the original Matter SDK ships.
func DefaultTiming() Timing {
	return Timing{
		DelayBeforeNextAddress:               300 * time.Millisecond,
		MaxDelayBetweenInitialContactRetries: 10 * time.Second,
		DelayAfterNetworkError:               5 * time.Second,
		DelayAfterPeerError:                  5 * time.Second,
		DelayAfterUnhandledError:             10 * time.Second,
	}
}

// Pairer opens a socket, establishes an unsecured session, and runs CASE
// pairing against addr (spec §4.8 step 9). It is supplied by the caller —
// session establishment is the secure-channel layer's concern, not this
// orchestrator's — and is retried internally until it succeeds or the
// attempt's Abort fires. reducedInitialRT is set when addr is not the first
// address tried for this peer (spec: "a reduced initial retransmission
// time").
type Pairer[S any] func(ctx context.Context, addr address.ServerAddress, maxRetransmissionTime time.Duration, reducedInitialRT bool) (S, error)

// Semaphore limits concurrently-in-flight connection attempts across all
// peers (spec §4.8 step 1, "network semaphore slot").
type Semaphore struct{ w *semaphore.Weighted }

// NewSemaphore creates a Semaphore admitting at most n concurrent holders.
func NewSemaphore(n int64) *Semaphore { return &Semaphore{w: semaphore.NewWeighted(n)} }

// Orchestrator drives one peer's connection attempts to completion (spec
// §4.8). A fresh Orchestrator is created per connection attempt; Connect
// runs until a session is produced or ctx is cancelled.
type Orchestrator[S any] struct {
	timing  Timing
	sem     *Semaphore
	pair    Pairer[S]
	logger  *slog.Logger
	clk     clock.Clock
	entropy clock.Entropy

	root *cancel.Abort

	mu                 sync.Mutex
	status             string
	pending            addressHeap
	pendingSet         map[string]bool
	attempts           map[string]*runningAttempt
	fallback           *address.ServerAddress
	lastAttemptStarted time.Time
	newAddressSignal   chan struct{}

	resultOnce sync.Once
	result     S
	resultErr  error
	succeeded  bool
	done       chan struct{}
}

type runningAttempt struct {
	addr   address.ServerAddress
	abort  *cancel.Abort
	isFirst bool
}

// Options configures an Orchestrator.
type Options struct {
	Timing  Timing
	Logger  *slog.Logger
	Clock   clock.Clock
	Entropy clock.Entropy
}

// New constructs an Orchestrator that pairs sessions via pair, admitted
// through sem.
func New[S any](sem *Semaphore, pair Pairer[S], opts Options) *Orchestrator[S] {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Entropy == nil {
		opts.Entropy = clock.SystemEntropy{}
	}
	timing := opts.Timing
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	return &Orchestrator[S]{
		timing:           timing,
		sem:              sem,
		pair:             pair,
		logger:           opts.Logger,
		clk:              opts.Clock,
		entropy:          opts.Entropy,
		pendingSet:       make(map[string]bool),
		attempts:         make(map[string]*runningAttempt),
		newAddressSignal: make(chan struct{}, 1),
		done:             make(chan struct{}),
	}
}

// Status reports the orchestrator's current coarse state: "connecting" or
// "reachable".
func (o *Orchestrator[S]) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Connect acquires a network semaphore slot, subscribes to svc's address
// changes, and races attempts across discovered addresses (plus a
// fallback to operationalAddr if nothing is discovered) until one produces
// a session or ctx is cancelled (spec §4.8 steps 1-10).
func (o *Orchestrator[S]) Connect(ctx context.Context, svc *ipservice.Service, operationalAddr *address.ServerAddress) (S, error) {
	var zero S

	if err := o.sem.w.Acquire(ctx, 1); err != nil {
		return zero, ctx.Err()
	}
	defer o.sem.w.Release(1)

	o.mu.Lock()
	o.status = "connecting"
	o.mu.Unlock()

	parent := cancel.New()
	o.root = cancel.NewWithOptions(cancel.Options{Parents: []*cancel.Abort{parent}})
	defer o.root.Close()
	defer parent.Close()

	go func() {
		select {
		case <-ctx.Done():
			parent.Abort(ctx.Err())
		case <-parent.Context().Done():
		}
	}()

	deltas := make(chan ipservice.Delta, 16)
	addrCtx, cancelAddrs := context.WithCancel(o.root.Context())
	defer cancelAddrs()
	go svc.AddressChanges(addrCtx, deltas)

	go o.deltaLoop(deltas)
	go o.schedulerLoop()
	o.maybeStartFallback(operationalAddr)

	go func() {
		<-o.root.Context().Done()
		o.giveUp()
	}()

	<-o.done
	o.mu.Lock()
	succeeded, res, err := o.succeeded, o.result, o.resultErr
	if succeeded {
		o.status = "reachable"
	}
	o.mu.Unlock()
	if !succeeded {
		return zero, err
	}
	return res, err
}

func (o *Orchestrator[S]) deltaLoop(deltas <-chan ipservice.Delta) {
	for {
		select {
		case d, ok := <-deltas:
			if !ok {
				return
			}
			switch d.Kind {
			case ipservice.DeltaAdd:
				o.onAddressAdded(d.Address)
			case ipservice.DeltaDelete:
				o.onAddressDeleted(d.Address)
			}
		case <-o.root.Context().Done():
			return
		}
	}
}

// onAddressAdded implements spec §4.8 step 6.
func (o *Orchestrator[S]) onAddressAdded(addr address.ServerAddress) {
	o.mu.Lock()
	if o.fallback != nil && addr.Equal(*o.fallback) {
		o.fallback = nil
		o.mu.Unlock()
		o.signalNewAddress()
		return
	}
	key := addr.URL()
	if o.pendingSet[key] || o.attempts[key] != nil {
		o.mu.Unlock()
		return
	}
	o.pendingSet[key] = true
	heap.Push(&o.pending, addr)
	o.mu.Unlock()
	o.signalNewAddress()
}

// onAddressDeleted implements spec §4.8 step 7.
func (o *Orchestrator[S]) onAddressDeleted(addr address.ServerAddress) {
	key := addr.URL()
	o.mu.Lock()
	if a, ok := o.attempts[key]; ok {
		if len(o.attempts) == 1 && o.fallback == nil {
			// Sole running attempt on the known operational address: keep it
			// running, demoted to fallback rather than aborted.
			o.fallback = &addr
			o.mu.Unlock()
			return
		}
		a.abort.Abort(nil)
		delete(o.attempts, key)
		o.mu.Unlock()
		return
	}
	if o.pendingSet[key] {
		delete(o.pendingSet, key)
		o.pending.removeByKey(key)
	}
	o.mu.Unlock()
}

func (o *Orchestrator[S]) signalNewAddress() {
	select {
	case o.newAddressSignal <- struct{}{}:
	default:
	}
}

// maybeStartFallback implements spec §4.8 step 8: with nothing pending or
// running, try the peer's last-known operational address.
func (o *Orchestrator[S]) maybeStartFallback(operationalAddr *address.ServerAddress) {
	if operationalAddr == nil {
		return
	}
	o.mu.Lock()
	if len(o.attempts) != 0 || o.pending.Len() != 0 {
		o.mu.Unlock()
		return
	}
	o.fallback = operationalAddr
	o.mu.Unlock()
	o.startAttempt(*operationalAddr, true)
}

// schedulerLoop implements spec §4.8 step 5.
func (o *Orchestrator[S]) schedulerLoop() {
	first := true
	for {
		o.mu.Lock()
		empty := o.pending.Len() == 0
		o.mu.Unlock()
		if empty {
			select {
			case <-o.newAddressSignal:
				continue
			case <-o.root.Context().Done():
				return
			}
		}

		delay := o.timeUntilNextAttemptAllowed()
		if delay > 0 {
			select {
			case <-o.newAddressSignal:
				continue // a new (possibly higher-priority) address arrived; re-evaluate
			case <-o.clk.After(delay):
			case <-o.root.Context().Done():
				return
			}
		}

		o.mu.Lock()
		if o.pending.Len() == 0 {
			o.mu.Unlock()
			continue
		}
		addr := heap.Pop(&o.pending).(address.ServerAddress)
		delete(o.pendingSet, addr.URL())
		o.lastAttemptStarted = o.nowLocked()
		o.mu.Unlock()

		o.startAttempt(addr, first)
		first = false
	}
}

func (o *Orchestrator[S]) nowLocked() time.Time { return time.UnixMilli(o.clk.NowMillis()) }

func (o *Orchestrator[S]) timeUntilNextAttemptAllowed() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.lastAttemptStarted.IsZero() {
		return 0
	}
	elapsed := time.UnixMilli(o.clk.NowMillis()).Sub(o.lastAttemptStarted)
	remaining := o.timing.DelayBeforeNextAddress - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// startAttempt runs spec §4.8 step 9's retry loop for one address until it
// succeeds, the address is dropped, or the overall abort fires.
func (o *Orchestrator[S]) startAttempt(addr address.ServerAddress, isFirst bool) {
	a := &runningAttempt{addr: addr, isFirst: isFirst, abort: cancel.NewWithOptions(cancel.Options{Parents: []*cancel.Abort{o.root}})}
	o.mu.Lock()
	o.attempts[addr.URL()] = a
	o.mu.Unlock()

	go o.runAttempt(a)
}

func (o *Orchestrator[S]) runAttempt(a *runningAttempt) {
	defer a.abort.Close()
	defer func() {
		o.mu.Lock()
		if cur, ok := o.attempts[a.addr.URL()]; ok && cur == a {
			delete(o.attempts, a.addr.URL())
		}
		o.mu.Unlock()
	}()

	for {
		if a.abort.Aborted() {
			return
		}

		session, err := o.pair(a.abort.Context(), a.addr, o.timing.MaxDelayBetweenInitialContactRetries, !a.isFirst)
		if err == nil {
			o.succeed(session)
			return
		}
		if a.abort.Aborted() {
			return
		}

		wait := o.classify(err)
		if !a.abort.Sleep(wait) {
			return
		}
	}
}

// classify implements the error classification table in spec §4.8 step 9.
func (o *Orchestrator[S]) classify(err error) time.Duration {
	var chanErr *errors.ChannelStatusError
	if stderrors.As(err, &chanErr) {
		if chanErr.General == statusBusy && chanErr.HasDelay {
			jitter := time.Duration(clock.NextFloat01(o.entropy) * float64(o.timing.DelayAfterNetworkError))
			return time.Duration(chanErr.BusyDelay)*time.Millisecond + jitter
		}
		if chanErr.NoSharedTrustRoots {
			o.logger.Warn("no shared trust roots; retrying immediately", "error", err)
			return 0
		}
		return o.timing.DelayAfterPeerError
	}

	var transient *errors.TransientPeerError
	if stderrors.As(err, &transient) {
		return o.timing.DelayAfterNetworkError
	}

	o.logger.Warn("unhandled error during peer pairing attempt", "error", err)
	return o.timing.DelayAfterUnhandledError
}

const statusBusy = 3 // Matter Core spec general-status "BUSY"

// succeed records session as the connection's result and aborts every
// sibling attempt (spec §4.8 step 9: "abort the overall connection;
// siblings unwind cleanly").
func (o *Orchestrator[S]) succeed(session S) {
	o.resultOnce.Do(func() {
		o.mu.Lock()
		o.result = session
		o.succeeded = true
		o.mu.Unlock()
		o.root.Abort(nil)
		close(o.done)
	})
}

// giveUp unblocks Connect with a zero result when the outer context is
// cancelled before any attempt succeeded (spec §4.8 step 10).
func (o *Orchestrator[S]) giveUp() {
	o.resultOnce.Do(func() {
		close(o.done)
	})
}
