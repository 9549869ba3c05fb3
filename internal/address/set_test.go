package address

import (
	"net/netip"
	"testing"
)

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestAddDedupesByURL(t *testing.T) {
	s := NewSet()
	a1 := s.Add(UDP(mustAddr("10.0.0.1"), 5540))
	a2 := s.Add(UDP(mustAddr("10.0.0.1"), 5540))
	if a1 != a2 {
		t.Fatal("expected interned instance to be returned")
	}
	if s.Size() != 1 {
		t.Fatalf("size = %d, want 1", s.Size())
	}
}

func TestIterationDesirabilityOrder(t *testing.T) {
	s := NewSet()
	low := UDP(mustAddr("10.0.0.1"), 1)
	low.SelectionPreference = 2
	high := UDP(mustAddr("10.0.0.2"), 2)
	high.SelectionPreference = 1
	s.Add(low)
	s.Add(high)

	var order []string
	s.Each(func(a ServerAddress) bool {
		order = append(order, a.URL())
		return true
	})
	if len(order) != 2 || order[0] != high.URL() {
		t.Fatalf("order = %v, want %s first", order, high.URL())
	}
}

func TestReplacePreservesIdentity(t *testing.T) {
	s := NewSet()
	a := UDP(mustAddr("10.0.0.1"), 1)
	stored := s.Add(a)

	s.Replace([]ServerAddress{a, UDP(mustAddr("10.0.0.2"), 2)})
	if !s.Has(a) {
		t.Fatal("expected a to remain")
	}
	got := s.Add(a)
	if got != stored {
		t.Fatal("expected identity to be preserved across replace")
	}
	if s.Size() != 2 {
		t.Fatalf("size = %d, want 2", s.Size())
	}
}

func TestReplaceRemovesMissing(t *testing.T) {
	s := NewSet()
	a := UDP(mustAddr("10.0.0.1"), 1)
	b := UDP(mustAddr("10.0.0.2"), 2)
	s.Add(a)
	s.Add(b)

	s.Replace([]ServerAddress{a})
	if s.Has(b) {
		t.Fatal("expected b to be removed")
	}
	if s.Size() != 1 {
		t.Fatalf("size = %d, want 1", s.Size())
	}
}

func TestEachRestartsOnMutationSkipsYielded(t *testing.T) {
	s := NewSet()
	a := UDP(mustAddr("10.0.0.1"), 1)
	a.SelectionPreference = 1
	b := UDP(mustAddr("10.0.0.2"), 2)
	b.SelectionPreference = 2
	s.Add(a)
	s.Add(b)

	var order []string
	first := true
	s.Each(func(addr ServerAddress) bool {
		order = append(order, addr.URL())
		if first && addr.URL() == a.URL() {
			first = false
			c := UDP(mustAddr("10.0.0.3"), 3)
			c.SelectionPreference = 0 // most desirable; should be inserted before b
			s.Add(c)
		}
		return true
	})

	if len(order) != 3 {
		t.Fatalf("expected 3 distinct addresses yielded exactly once, got %v", order)
	}
	seen := map[string]int{}
	for _, u := range order {
		seen[u]++
	}
	for u, n := range seen {
		if n != 1 {
			t.Fatalf("address %s yielded %d times", u, n)
		}
	}
}
