package dnssd

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joshuafuller/matterlink/internal/clock"
)

// DefaultMinTTL is the floor applied to PTR TTLs (spec §4.4: "clamp TTL up
// to min-ttl (default 15s for PTR)").
const DefaultMinTTL = 15 * time.Second

// DefaultGoodbyeProtectionWindow is how recently a record must have been
// discovered for a goodbye (TTL=0) to be ignored (spec §4.4 step 2).
const DefaultGoodbyeProtectionWindow = time.Second

// Message is the decoded inbound payload the socket hands the cache (spec
// §6 "mDNS socket. Inbound message"). Answers and Additional together form
// the pool the Filter partitions into explicit/implicit.
type Message struct {
	Answers           []Record
	Additional        []Record
	SourceInterface   string
}

// Filter decides whether a record is "explicit" (directly relevant to this
// cache's interests) per spec §4.4 step 1. Implicit records (those the
// filter rejects) are still installed if they turn out to be A/AAAA
// records for an SRV target a later pass pulled in.
type Filter func(r Record) bool

// Options configures a Cache.
type Options struct {
	Clock                   clock.Clock
	MinTTL                  map[RecordType]time.Duration
	GoodbyeProtectionWindow time.Duration
	Logger                  *slog.Logger
}

// Cache owns every Name discovered on one mDNS socket (spec §4.4: "a
// single cache instance owns all names discovered on one mDNS socket").
// All mutation is serialized through the exported methods under mu,
// matching the single-writer ownership policy (§5).
type Cache struct {
	mu        sync.Mutex
	names     map[string]*Name
	sched     *scheduler
	clk       clock.Clock
	minTTL    map[RecordType]time.Duration
	goodbyeProtectionWindow time.Duration
	logger    *slog.Logger
}

// NewCache constructs a Cache per opts.
func NewCache(opts Options) *Cache {
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.GoodbyeProtectionWindow == 0 {
		opts.GoodbyeProtectionWindow = DefaultGoodbyeProtectionWindow
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	minTTL := map[RecordType]time.Duration{RecordPTR: DefaultMinTTL}
	for k, v := range opts.MinTTL {
		minTTL[k] = v
	}
	return &Cache{
		names:  make(map[string]*Name),
		sched:  newScheduler(opts.Clock),
		clk:    opts.Clock,
		minTTL: minTTL,
		goodbyeProtectionWindow: opts.GoodbyeProtectionWindow,
		logger: opts.Logger,
	}
}

// NameContext implementation, called back by Name.

func (c *Cache) scheduleExpiry(qname, key string, expiresAt int64) {
	c.sched.schedule(qname, key, expiresAt)
}

func (c *Cache) unscheduleExpiry(qname, key string) {
	c.sched.unschedule(qname, key)
}

func (c *Cache) deleteIfUnused(qname string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.names[qname]
	if !ok {
		return
	}
	if n.unused() {
		delete(c.names, qname)
	}
}

// Lookup returns the Name for qname if it already exists, without creating
// it.
func (c *Cache) Lookup(qname string) (*Name, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.names[LowerQName(qname)]
	return n, ok
}

// Observe returns the Name for qname, creating it lazily if needed (spec
// §4.4: "Names are created lazily by qname"), and subscribes obs to it.
// The returned unsubscribe function also triggers the delete-if-unused
// check.
func (c *Cache) Observe(qname string, obs Observer) (*Name, func()) {
	c.mu.Lock()
	qname = LowerQName(qname)
	n, ok := c.names[qname]
	if !ok {
		n = newName(qname, c)
		c.names[qname] = n
	}
	c.mu.Unlock()
	return n, n.Subscribe(obs)
}

// ExpireDue pops every expiration due at or before now and delivers a
// deletion (not a goodbye) to the owning name, per spec §4.4: "on fire,
// deliver a deletion to the owning name (not a goodbye)." Callers run this
// from their own event loop tick (or a ticker); Cache does not own a
// goroutine itself.
func (c *Cache) ExpireDue(now int64) {
	c.mu.Lock()
	due := c.sched.popDue(now)
	type notify struct {
		name      *Name
		changed   bool
	}
	var toNotify []notify
	for _, e := range due {
		n, ok := c.names[e.qname]
		if !ok {
			continue
		}
		if n.deleteRecord(e.key) {
			toNotify = append(toNotify, notify{n, true})
		}
		if n.unused() {
			delete(c.names, e.qname)
		}
	}
	c.mu.Unlock()

	for _, nf := range toNotify {
		nf.name.notifyChanged()
	}
}

// NextExpiryDeadline reports the next absolute ms timestamp a record will
// expire, if any, so a caller can size its next scheduler tick.
func (c *Cache) NextExpiryDeadline() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sched.nextDeadline()
}

// Ingest processes one inbound mDNS message per spec §4.4 steps 1-3:
// explicit records are goodbye'd or installed directly; implicit records
// (those the filter rejected) are pulled in across repeated passes as long
// as a newly-installed SRV record references a qname they belong to — this
// lets A/AAAA records for SRV-targeted hosts get installed without
// matching the filter directly.
func (c *Cache) Ingest(msg Message, filter Filter) {
	all := make([]Record, 0, len(msg.Answers)+len(msg.Additional))
	all = append(all, msg.Answers...)
	all = append(all, msg.Additional...)

	var explicit, implicit []Record
	for _, r := range all {
		if filter(r) {
			explicit = append(explicit, r)
		} else {
			implicit = append(implicit, r)
		}
	}

	discovered, changed := c.processExplicit(explicit)

	// Pull in implicit A/AAAA for SRV targets discovered this round,
	// repeating as long as new target qnames appear (spec §4.4 step 3).
	wanted := c.srvTargetQNames(explicit)
	for len(wanted) > 0 && len(implicit) > 0 {
		var remaining []Record
		var pulled []Record
		for _, r := range implicit {
			if _, ok := wanted[LowerQName(r.Name)]; ok {
				pulled = append(pulled, r)
			} else {
				remaining = append(remaining, r)
			}
		}
		if len(pulled) == 0 {
			break
		}
		implicit = remaining
		d2, c2 := c.processExplicit(pulled)
		discovered = append(discovered, d2...)
		changed = append(changed, c2...)
		wanted = c.srvTargetQNames(pulled)
	}

	for _, n := range discovered {
		n.notifyDiscovered()
	}
	for _, n := range changed {
		n.notifyChanged()
	}
}

func (c *Cache) srvTargetQNames(records []Record) map[string]struct{} {
	out := make(map[string]struct{})
	for _, r := range records {
		if r.Type == RecordSRV {
			out[LowerQName(r.SRV.Target)] = struct{}{}
		}
	}
	return out
}

// processExplicit installs or goodbyes each record, creating its Name
// lazily. It returns the names that transitioned to "discovered" and those
// that merely changed (so the caller can notify outside the lock).
func (c *Cache) processExplicit(records []Record) (discovered, changed []*Name) {
	if len(records) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clk.NowMillis()

	for _, r := range records {
		qname := LowerQName(r.Name)
		n, ok := c.names[qname]

		if r.TTLSeconds == 0 {
			// Goodbye: only honor it outside the protection window.
			if !ok {
				continue
			}
			existing, has := n.RecordByKey(r.Key())
			if !has {
				continue
			}
			installedAt := existing.ExpiresAt - int64(existing.TTLSeconds)*1000
			if now-installedAt < c.goodbyeProtectionWindow.Milliseconds() {
				continue
			}
			if n.deleteRecord(r.Key()) {
				changed = append(changed, n)
			}
			if n.unused() {
				delete(c.names, qname)
			}
			continue
		}

		if !ok {
			n = newName(qname, c)
			c.names[qname] = n
		}

		ttl := r.TTLSeconds
		if floor, hasFloor := c.minTTL[r.Type]; hasFloor {
			floorSeconds := uint32(floor.Seconds())
			if ttl < floorSeconds {
				ttl = floorSeconds
			}
		}
		r.TTLSeconds = ttl
		r.ExpiresAt = now + int64(ttl)*1000

		if n.install(r) {
			discovered = append(discovered, n)
		} else {
			changed = append(changed, n)
		}
	}

	return discovered, changed
}
