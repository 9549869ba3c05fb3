// Package ipservice implements the IP service (spec §4.5, C5): a
// higher-level view over one DNS-SD name that flattens its SRV targets and
// their A/AAAA records into a stream of UDP ServerAddress changes.
package ipservice

import (
	"context"
	"net/netip"
	"sort"
	"sync"

	"github.com/joshuafuller/matterlink/internal/address"
	"github.com/joshuafuller/matterlink/internal/dnssd"
)

// targetEntry is the per-target bookkeeping: the service name, the SRV
// port, and the function that cancels the target's name subscription. SRV
// priority and weight are not recorded.
type targetEntry struct {
	serviceName string
	port        uint16
	unsubscribe func()
}

// Service tracks one DNS-SD name's SRV targets and flattens them to UDP
// addresses in its own address.Set (spec §4.5).
type Service struct {
	cache *dnssd.Cache
	qname string

	mu       sync.Mutex
	targets  map[string]*targetEntry // hostQName -> entry (one SRV target may be referenced by several service names; this models the single-target case used by a node's operational service)
	addrs    *address.Set
	reachable bool

	changedMu sync.Mutex
	changedCh chan struct{}
	pendingChange bool
}

// New constructs a Service bound to one DNS-SD qname (typically the
// `<instance>._matter._udp.local` service record, or a node's fabric-scoped
// operational service name). It subscribes to the name's SRV records.
func New(cache *dnssd.Cache, qname string) *Service {
	s := &Service{
		cache:     cache,
		qname:     qname,
		targets:   make(map[string]*targetEntry),
		addrs:     address.NewSet(),
		changedCh: make(chan struct{}, 1),
	}
	_, unsub := cache.Observe(qname, s)
	s.targets[qname] = &targetEntry{unsubscribe: unsub}
	s.refreshFromSRV()
	return s
}

// Close tears down all subscriptions held by this Service.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.targets {
		if t.unsubscribe != nil {
			t.unsubscribe()
		}
	}
}

// Discovered implements dnssd.Observer.
func (s *Service) Discovered(n *dnssd.Name) { s.onNameEvent(n) }

// Changed implements dnssd.Observer.
func (s *Service) Changed(n *dnssd.Name) { s.onNameEvent(n) }

func (s *Service) onNameEvent(n *dnssd.Name) {
	s.mu.Lock()
	if n.QName == s.qname {
		s.refreshFromSRVLocked()
	} else {
		s.refreshTargetLocked(n)
	}
	changed := s.addrs.Version()
	s.mu.Unlock()
	_ = changed
	s.signalChanged()
}

func (s *Service) refreshFromSRV() {
	s.mu.Lock()
	s.refreshFromSRVLocked()
	s.mu.Unlock()
}

// refreshFromSRVLocked subscribes to any newly-seen SRV target host and
// seeds addresses from records it may already know about (spec §4.5 "On
// SRV update: upsert the service entry, subscribe to the target's A/AAAA
// changes, seed addresses from any already-known records").
func (s *Service) refreshFromSRVLocked() {
	n, ok := s.cache.Lookup(s.qname)
	if !ok {
		return
	}
	for _, rec := range n.RecordsOfType(dnssd.RecordSRV) {
		hostQName := dnssd.LowerQName(rec.SRV.Target)
		if _, have := s.targets[hostQName]; have {
			continue
		}
		hostName, unsub := s.cache.Observe(hostQName, s)
		s.targets[hostQName] = &targetEntry{serviceName: s.qname, port: rec.SRV.Port, unsubscribe: unsub}
		s.seedFromHostLocked(hostName, rec.SRV.Port)
	}
}

func (s *Service) refreshTargetLocked(n *dnssd.Name) {
	t, ok := s.targets[n.QName]
	if !ok {
		return
	}
	s.reconcileHostLocked(n, t.port)
}

func (s *Service) seedFromHostLocked(n *dnssd.Name, port uint16) {
	s.reconcileHostLocked(n, port)
}

// reconcileHostLocked adds udp(ip, port) for every A/AAAA record currently
// known for n, and removes any address this Service previously derived
// from n that's no longer present — spec §4.5 "On A/AAAA update/delete
// under a target: add/remove udp(ip, port) for each service entry at that
// target."
func (s *Service) reconcileHostLocked(n *dnssd.Name, port uint16) {
	wasEmpty := s.addrs.Size() == 0

	var current []address.ServerAddress
	for _, rec := range append(n.RecordsOfType(dnssd.RecordA), n.RecordsOfType(dnssd.RecordAAAA)...) {
		ip, err := netip.ParseAddr(rec.IPAddress)
		if err != nil {
			continue
		}
		current = append(current, address.UDP(ip, port))
	}

	// Build the full desired address set across all tracked hosts, so
	// reconcile from one host doesn't clobber addresses seeded by others.
	desired := s.allDesiredAddressesLocked(n.QName, port, current)
	s.addrs.Replace(desired)

	if wasEmpty && s.addrs.Size() > 0 {
		s.reachable = true
	}
}

func (s *Service) allDesiredAddressesLocked(changedHost string, changedPort uint16, changedAddrs []address.ServerAddress) []address.ServerAddress {
	var out []address.ServerAddress
	out = append(out, changedAddrs...)
	for hostQName, t := range s.targets {
		if hostQName == changedHost || hostQName == s.qname {
			continue
		}
		n, ok := s.cache.Lookup(hostQName)
		if !ok {
			continue
		}
		for _, rec := range append(n.RecordsOfType(dnssd.RecordA), n.RecordsOfType(dnssd.RecordAAAA)...) {
			ip, err := netip.ParseAddr(rec.IPAddress)
			if err != nil {
				continue
			}
			out = append(out, address.UDP(ip, t.port))
		}
	}
	_ = changedPort
	return out
}

// signalChanged coalesces change notifications: multiple mutations before
// the consumer next reads Changed() collapse into a single wakeup, per
// spec §4.5 ("emit changed, coalesced to the next microtask").
func (s *Service) signalChanged() {
	select {
	case s.changedCh <- struct{}{}:
	default:
	}
}

// Changed returns a channel that receives a value whenever the address set
// has mutated since the last read.
func (s *Service) Changed() <-chan struct{} { return s.changedCh }

// Reachable reports whether at least one address has ever been observed.
func (s *Service) Reachable() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reachable
}

// AddressKind/delta types for AddressChanges.

type DeltaKind int

const (
	DeltaAdd DeltaKind = iota
	DeltaDelete
)

type Delta struct {
	Kind    DeltaKind
	Address address.ServerAddress
}

// AddressChanges is the asynchronous generator from spec §4.5: it emits a
// full delta from the last-seen set on each iteration (deletions before
// additions), then waits for a change or ctx cancellation. If interrupted
// mid-delta by a newer change, it restarts the outer loop; it never emits
// the same address twice in the same delta.
func (s *Service) AddressChanges(ctx context.Context, out chan<- Delta) {
	defer close(out)

	var lastSeen map[string]address.ServerAddress

	emit := func() bool {
		for {
			current := s.snapshotAddresses()
			startVersion := s.addrsVersion()

			deletes, adds := diff(lastSeen, current)

			for _, d := range deletes {
				select {
				case out <- Delta{Kind: DeltaDelete, Address: d}:
				case <-ctx.Done():
					return false
				}
				if s.addrsVersion() != startVersion {
					goto restart
				}
			}
			for _, a := range adds {
				select {
				case out <- Delta{Kind: DeltaAdd, Address: a}:
				case <-ctx.Done():
					return false
				}
				if s.addrsVersion() != startVersion {
					goto restart
				}
			}

			lastSeen = toMap(current)
			return true

		restart:
			continue
		}
	}

	for {
		if !emit() {
			return
		}
		select {
		case <-s.Changed():
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) snapshotAddresses() []address.ServerAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []address.ServerAddress
	s.addrs.Each(func(a address.ServerAddress) bool {
		out = append(out, a)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

func (s *Service) addrsVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs.Version()
}

func toMap(addrs []address.ServerAddress) map[string]address.ServerAddress {
	out := make(map[string]address.ServerAddress, len(addrs))
	for _, a := range addrs {
		out[a.URL()] = a
	}
	return out
}

func diff(oldSet map[string]address.ServerAddress, newList []address.ServerAddress) (deletes, adds []address.ServerAddress) {
	newSet := toMap(newList)
	for k, v := range oldSet {
		if _, ok := newSet[k]; !ok {
			deletes = append(deletes, v)
		}
	}
	for _, a := range newList {
		if _, ok := oldSet[a.URL()]; !ok {
			adds = append(adds, a)
		}
	}
	return deletes, adds
}
