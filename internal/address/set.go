package address

import "sort"

// Set is the ordered, de-duplicated, versioned container of ServerAddress
// values described in spec §3/§4.3. It is not safe for concurrent use; a
// Set is owned exclusively by one component (per spec §5's "Address sets
// ... owned exclusively by their component").
type Set struct {
	byURL   map[string]*ServerAddress
	version uint64
}

// NewSet returns an empty Set.
func NewSet() *Set {
	return &Set{byURL: make(map[string]*ServerAddress)}
}

// Add interns addr: if an address with the same URL already exists, the
// existing instance is returned unchanged (§3 "add (returns the interned
// instance if already present)"); otherwise addr is stored and returned.
func (s *Set) Add(addr ServerAddress) *ServerAddress {
	key := addr.URL()
	if existing, ok := s.byURL[key]; ok {
		return existing
	}
	stored := addr
	s.byURL[key] = &stored
	s.version++
	return s.byURL[key]
}

// Delete removes the address with addr's URL, if present.
func (s *Set) Delete(addr ServerAddress) bool {
	key := addr.URL()
	if _, ok := s.byURL[key]; !ok {
		return false
	}
	delete(s.byURL, key)
	s.version++
	return true
}

// Has reports whether an address with addr's URL is present.
func (s *Set) Has(addr ServerAddress) bool {
	_, ok := s.byURL[addr.URL()]
	return ok
}

// Size returns the number of addresses currently held.
func (s *Set) Size() int { return len(s.byURL) }

// Version returns the current mutation counter, incremented on every Add,
// Delete, and mutating Replace.
func (s *Set) Version() uint64 { return s.version }

// Replace reconciles the set with inputs: addresses whose URL already
// exists keep their stored instance (so external references to them stay
// valid); addresses present in inputs but not the old set are added;
// addresses present in the old set but not inputs are removed. Per spec §3
// ("replace (preserves existing instances for addresses present in both
// old and new inputs)").
func (s *Set) Replace(inputs []ServerAddress) {
	wanted := make(map[string]ServerAddress, len(inputs))
	for _, in := range inputs {
		wanted[in.URL()] = in
	}

	changed := false
	for key := range s.byURL {
		if _, ok := wanted[key]; !ok {
			delete(s.byURL, key)
			changed = true
		}
	}
	for key, in := range wanted {
		if _, ok := s.byURL[key]; !ok {
			stored := in
			s.byURL[key] = &stored
			changed = true
		}
	}
	if changed {
		s.version++
	}
}

// snapshot returns all addresses sorted by desirability (Less), most
// desirable first.
func (s *Set) snapshot() []*ServerAddress {
	out := make([]*ServerAddress, 0, len(s.byURL))
	for _, a := range s.byURL {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Less(*out[j])
	})
	return out
}

// Each walks the set in desirability order, restarting from the beginning
// whenever the set's version changes mid-walk (spec §3/§4.3: "iteration
// restarts from the beginning if version changed during a yield, skipping
// addresses already produced"). It stops cleanly once every address
// present at any point has been yielded once. fn returning false stops the
// walk early.
func (s *Set) Each(fn func(addr ServerAddress) bool) {
	yielded := make(map[string]struct{})

	for {
		startVersion := s.Version()
		items := s.snapshot()

		restarted := false
		for _, item := range items {
			key := item.URL()
			if _, done := yielded[key]; done {
				continue
			}
			if !fn(*item) {
				return
			}
			yielded[key] = struct{}{}

			if s.Version() != startVersion {
				restarted = true
				break
			}
		}

		if restarted {
			continue
		}

		// Completed a full pass with no version change mid-walk: check
		// whether anything new appeared between completing the loop body
		// and this check (version bump at the very end of the last item).
		if s.Version() != startVersion {
			continue
		}
		return
	}
}
