package dnssd

import (
	"container/heap"

	"github.com/joshuafuller/matterlink/internal/clock"
)

// scheduledExpiry is one entry in the expiration heap, keyed by (qname,
// recordKey) so a later re-schedule for the same slot can replace an
// earlier one without leaving a stale entry behind (it is simply marked
// cancelled and skipped when popped).
type scheduledExpiry struct {
	qname, key string
	expiresAt  int64
	cancelled  bool
	index      int
}

type expiryHeap []*scheduledExpiry

func (h expiryHeap) Len() int            { return len(h) }
func (h expiryHeap) Less(i, j int) bool  { return h[i].expiresAt < h[j].expiresAt }
func (h expiryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index, h[j].index = i, j
}
func (h *expiryHeap) Push(x any) {
	e := x.(*scheduledExpiry)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *expiryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

// scheduler is the "Scheduler keyed on expires-at" from spec §4.4: it
// drives record expiration by delivering a deletion (not a goodbye) to the
// owning Name when a record's expires-at fires.
//
// scheduler itself does not own a goroutine: Cache.ExpireDue asks it for
// due expiries via popDue and Cache.NextExpiryDeadline via nextDeadline,
// both under the Cache's lock.
type scheduler struct {
	clk     clock.Clock
	heap    expiryHeap
	entries map[string]*scheduledExpiry // "qname\x00key" -> entry
}

func newScheduler(clk clock.Clock) *scheduler {
	return &scheduler{clk: clk, entries: make(map[string]*scheduledExpiry)}
}

func entryKey(qname, key string) string { return qname + "\x00" + key }

func (s *scheduler) schedule(qname, key string, expiresAt int64) {
	ek := entryKey(qname, key)
	if old, ok := s.entries[ek]; ok {
		old.cancelled = true
	}
	e := &scheduledExpiry{qname: qname, key: key, expiresAt: expiresAt}
	s.entries[ek] = e
	heap.Push(&s.heap, e)
}

func (s *scheduler) unschedule(qname, key string) {
	ek := entryKey(qname, key)
	if old, ok := s.entries[ek]; ok {
		old.cancelled = true
		delete(s.entries, ek)
	}
}

// nextDeadline returns the expires-at of the next live entry, and whether
// one exists.
func (s *scheduler) nextDeadline() (int64, bool) {
	for len(s.heap) > 0 {
		top := s.heap[0]
		if top.cancelled {
			heap.Pop(&s.heap)
			continue
		}
		return top.expiresAt, true
	}
	return 0, false
}

// popDue pops and returns every entry whose expires-at is <= now.
func (s *scheduler) popDue(now int64) []scheduledExpiry {
	var due []scheduledExpiry
	for len(s.heap) > 0 {
		top := s.heap[0]
		if top.cancelled {
			heap.Pop(&s.heap)
			continue
		}
		if top.expiresAt > now {
			break
		}
		heap.Pop(&s.heap)
		delete(s.entries, entryKey(top.qname, top.key))
		due = append(due, *top)
	}
	return due
}
