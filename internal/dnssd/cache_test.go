package dnssd

import (
	"testing"
	"time"
)

type fakeClock struct{ now int64 }

func (f *fakeClock) NowMillis() int64                    { return f.now }
func (f *fakeClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func explicitFilter(interested map[string]bool) Filter {
	return func(r Record) bool { return interested[LowerQName(r.Name)] }
}

func TestGoodbyeWithinProtectionWindowIgnored(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true})

	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "inst._svc._tcp.local", TTLSeconds: 120}}}, f)

	clk.now = 500 // within 1s goodbye-protection-window
	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "inst._svc._tcp.local", TTLSeconds: 0}}}, f)

	n, ok := c.Lookup("_svc._tcp.local")
	if !ok {
		t.Fatal("expected name to still exist")
	}
	if len(n.Records()) != 1 {
		t.Fatalf("expected goodbye to be ignored within protection window, records=%v", n.Records())
	}
}

func TestGoodbyeOutsideProtectionWindowDeletes(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true})

	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "inst._svc._tcp.local", TTLSeconds: 120}}}, f)

	clk.now = 5000 // past the 1s window
	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "inst._svc._tcp.local", TTLSeconds: 0}}}, f)

	if _, ok := c.Lookup("_svc._tcp.local"); ok {
		t.Fatal("expected name to self-delete after goodbye removed its only record")
	}
}

func TestTTLClampedToMinimum(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true})

	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "inst._svc._tcp.local", TTLSeconds: 5}}}, f)

	n, _ := c.Lookup("_svc._tcp.local")
	recs := n.RecordsOfType(RecordPTR)
	if len(recs) != 1 || recs[0].TTLSeconds != uint32(DefaultMinTTL.Seconds()) {
		t.Fatalf("expected TTL clamped to %v, got %v", DefaultMinTTL, recs)
	}
}

func TestNameSelfDeletesWhenUnused(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	qname := "host.local"

	type noopObs struct{}
	obsType := &struct{ noopObs }{}
	_ = obsType

	n, unsub := c.Observe(qname, discardObserver{})
	if n.QName != qname {
		t.Fatalf("qname = %s", n.QName)
	}
	unsub()
	if _, ok := c.Lookup(qname); ok {
		t.Fatal("expected name with no records and no observers to self-delete")
	}
}

type discardObserver struct{}

func (discardObserver) Discovered(*Name) {}
func (discardObserver) Changed(*Name)    {}

func TestImplicitRecordsPulledInForSRVTarget(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true, "inst._svc._tcp.local": true})

	c.Ingest(Message{
		Answers: []Record{
			{Name: "inst._svc._tcp.local", Type: RecordSRV, SRV: SRVValue{Target: "host1.local", Port: 1234}, TTLSeconds: 120},
		},
		Additional: []Record{
			{Name: "host1.local", Type: RecordA, IPAddress: "10.0.0.5", TTLSeconds: 120},
		},
	}, f)

	hostName, ok := c.Lookup("host1.local")
	if !ok {
		t.Fatal("expected host1.local to be pulled in via SRV target")
	}
	if len(hostName.RecordsOfType(RecordA)) != 1 {
		t.Fatalf("expected A record installed, got %v", hostName.Records())
	}
}

func TestDiscoveredFiresOnFirstRecord(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true})

	var discovered int
	obs := &countingObserver{}
	_, unsub := c.Observe("_svc._tcp.local", obs)
	defer unsub()

	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "a", TTLSeconds: 120}}}, f)
	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "b", TTLSeconds: 120}}}, f)

	discovered = obs.discovered
	if discovered != 1 {
		t.Fatalf("expected exactly 1 discovered event, got %d", discovered)
	}
	if obs.changed != 1 {
		t.Fatalf("expected 1 changed event for the second record, got %d", obs.changed)
	}
}

type countingObserver struct {
	discovered int
	changed    int
}

func (c *countingObserver) Discovered(*Name) { c.discovered++ }
func (c *countingObserver) Changed(*Name)    { c.changed++ }

func TestExpireDueDeletesAndNotifies(t *testing.T) {
	clk := &fakeClock{now: 0}
	c := NewCache(Options{Clock: clk})
	f := explicitFilter(map[string]bool{"_svc._tcp.local": true})

	obs := &countingObserver{}
	_, unsub := c.Observe("_svc._tcp.local", obs)
	defer unsub()

	c.Ingest(Message{Answers: []Record{{Name: "_svc._tcp.local", Type: RecordPTR, PTRTarget: "a", TTLSeconds: 120}}}, f)

	c.ExpireDue(120_001)
	n, ok := c.Lookup("_svc._tcp.local")
	if !ok {
		t.Fatal("name should still exist (has an observer)")
	}
	if len(n.Records()) != 0 {
		t.Fatalf("expected record expired, got %v", n.Records())
	}
	if obs.changed != 1 {
		t.Fatalf("expected a changed notification on expiry, got %d", obs.changed)
	}
}
