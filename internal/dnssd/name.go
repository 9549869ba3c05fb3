package dnssd

import "sync"

// NameContext is the small interface a Name uses to reach back into its
// owning Cache, replacing a full back-reference per the design note on
// cyclic ownership (spec §9): "model the back-reference as a small trait
// object with just the three methods the name actually needs."
type NameContext interface {
	// scheduleExpiry arranges for the record to be deleted once the clock
	// reaches expiresAt, keyed so a later call with the same key replaces
	// the earlier one (re-installing a record with a new TTL reschedules).
	scheduleExpiry(qname, key string, expiresAt int64)

	// unscheduleExpiry cancels a previously scheduled expiry.
	unscheduleExpiry(qname, key string)

	// deleteIfUnused is invoked after an operation that might have made a
	// Name eligible for self-deletion (empty records, no observers).
	deleteIfUnused(qname string)
}

// Observer receives a notification whenever the set of records changes in
// a way it should see: Discovered fires the first time a name transitions
// from no records to having some (spec §4.4 step 2); Changed fires on any
// subsequent install/delete so IP services and other consumers can
// recompute derived state.
type Observer interface {
	Discovered(name *Name)
	Changed(name *Name)
}

// Name owns all records the cache has learned for one qname (spec §3
// "DNS-SD name"). Its record and observer maps are guarded by its own
// RWMutex; the Cache serializes all record mutation through its exported
// methods under the Cache's lock.
type Name struct {
	QName string

	records    map[string]Record // recordKey -> record
	parameters map[string]string // TXT key/value pairs, accumulated across all TXT records seen.
	observers  map[Observer]struct{}

	ctx NameContext
	mu  sync.RWMutex
}

func newName(qname string, ctx NameContext) *Name {
	return &Name{
		QName:      qname,
		records:    make(map[string]Record),
		parameters: make(map[string]string),
		observers:  make(map[Observer]struct{}),
		ctx:        ctx,
	}
}

// Subscribe registers obs to receive Discovered/Changed events. It returns
// an unsubscribe function.
func (n *Name) Subscribe(obs Observer) func() {
	n.mu.Lock()
	n.observers[obs] = struct{}{}
	n.mu.Unlock()
	return func() {
		n.mu.Lock()
		delete(n.observers, obs)
		n.mu.Unlock()
		n.ctx.deleteIfUnused(n.QName)
	}
}

// Records returns a snapshot of all currently installed records.
func (n *Name) Records() []Record {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Record, 0, len(n.records))
	for _, r := range n.records {
		out = append(out, r)
	}
	return out
}

// RecordsOfType returns a snapshot of records of the given type.
func (n *Name) RecordsOfType(t RecordType) []Record {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []Record
	for _, r := range n.records {
		if r.Type == t {
			out = append(out, r)
		}
	}
	return out
}

// RecordByKey returns the installed record for the given record-key, and
// whether it exists.
func (n *Name) RecordByKey(key string) (Record, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	r, ok := n.records[key]
	return r, ok
}

// Parameter returns a TXT key's value and whether it was present.
func (n *Name) Parameter(key string) (string, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	v, ok := n.parameters[key]
	return v, ok
}

// empty reports whether this name has no records (used by the invariant
// in spec §3/§4.4: "a name is deleted when observer set empty AND record
// map empty").
func (n *Name) empty() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.records) == 0
}

func (n *Name) unused() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers) == 0 && len(n.records) == 0
}

// install adds or replaces a record, scheduling its expiration if it has a
// non-zero TTL (spec §4.4 step 2). It returns whether the name transitioned
// from empty to non-empty (triggering "discovered").
func (n *Name) install(r Record) (transitionedToDiscovered bool) {
	n.mu.Lock()
	wasEmpty := len(n.records) == 0
	key := r.Key()
	if _, existed := n.records[key]; existed {
		n.ctx.unscheduleExpiry(n.QName, key)
	}
	n.records[key] = r
	if r.Type == RecordTXT {
		for k, v := range r.TXT {
			n.parameters[k] = v
		}
	}
	n.mu.Unlock()

	if r.TTLSeconds != 0 {
		n.ctx.scheduleExpiry(n.QName, key, r.ExpiresAt)
	}

	nowNonEmpty := !n.empty()
	transitionedToDiscovered = wasEmpty && nowNonEmpty
	return transitionedToDiscovered
}

// deleteRecord removes a record by key (used both for goodbye processing
// and for scheduler-driven expiration).
func (n *Name) deleteRecord(key string) (existed bool) {
	n.mu.Lock()
	_, existed = n.records[key]
	delete(n.records, key)
	n.mu.Unlock()
	return existed
}

func (n *Name) notifyDiscovered() {
	n.mu.RLock()
	obs := make([]Observer, 0, len(n.observers))
	for o := range n.observers {
		obs = append(obs, o)
	}
	n.mu.RUnlock()
	for _, o := range obs {
		o.Discovered(n)
	}
}

func (n *Name) notifyChanged() {
	n.mu.RLock()
	obs := make([]Observer, 0, len(n.observers))
	for o := range n.observers {
		obs = append(obs, o)
	}
	n.mu.RUnlock()
	for _, o := range obs {
		o.Changed(n)
	}
}
