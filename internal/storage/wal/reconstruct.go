package wal

import "sort"

// state is the in-memory reconstruction of the store's current content: a
// base snapshot with every subsequent commit folded in (spec §4.10:
// "current state is the base snapshot with the WAL replayed on top").
type state struct {
	data     map[string]map[string]interface{}
	lastID   CommitID
	lastTS   int64
}

func newState(snap Snapshot) *state {
	data := snap.Data
	if data == nil {
		data = map[string]map[string]interface{}{}
	}
	cloned := make(map[string]map[string]interface{}, len(data))
	for ctx, kv := range data {
		cloned[ctx] = cloneKV(kv)
	}
	return &state{data: cloned, lastID: snap.CommitID, lastTS: snap.TS}
}

func cloneKV(kv map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(kv))
	for k, v := range kv {
		out[k] = v
	}
	return out
}

// apply folds one commit record into the state, in order. Commits with an
// ID not strictly greater than the state's lastID are ignored, so replaying
// an already-applied tail segment is a no-op.
func (s *state) apply(rec CommitRecord) {
	if rec.ID <= s.lastID {
		return
	}
	for _, op := range rec.Ops {
		s.applyOp(op)
	}
	s.lastID = rec.ID
	s.lastTS = rec.TS
}

func (s *state) applyOp(op Op) {
	switch op.Kind {
	case OpSet:
		kv, ok := s.data[op.Context]
		if !ok {
			kv = map[string]interface{}{}
			s.data[op.Context] = kv
		}
		kv[op.Key] = op.Value
	case OpDelete:
		if kv, ok := s.data[op.Context]; ok {
			delete(kv, op.Key)
			if len(kv) == 0 {
				delete(s.data, op.Context)
			}
		}
	case OpClearAll:
		delete(s.data, op.Context)
	}
}

// get returns the raw value at (ctxPath, key).
func (s *state) get(ctxPath, key string) (interface{}, bool) {
	kv, ok := s.data[ctxPath]
	if !ok {
		return nil, false
	}
	v, ok := kv[key]
	return v, ok
}

// keys returns the sorted leaf keys stored directly under ctxPath.
func (s *state) keys(ctxPath string) []string {
	kv, ok := s.data[ctxPath]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(kv))
	for k := range kv {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// contexts returns the sorted set of context paths that currently hold at
// least one key.
func (s *state) contexts() []string {
	out := make([]string, 0, len(s.data))
	for ctx := range s.data {
		out = append(out, ctx)
	}
	sort.Strings(out)
	return out
}

// snapshot materializes the current state as a Snapshot ready for
// WriteSnapshotAtomic.
func (s *state) snapshot(ts int64) Snapshot {
	data := make(map[string]map[string]interface{}, len(s.data))
	for ctx, kv := range s.data {
		data[ctx] = cloneKV(kv)
	}
	return Snapshot{CommitID: s.lastID, TS: ts, Data: data}
}

// clone returns an independent deep copy of the state. Point-in-time replay
// builds its own state with newState and does not call it.
func (s *state) clone() *state {
	out := &state{lastID: s.lastID, lastTS: s.lastTS, data: make(map[string]map[string]interface{}, len(s.data))}
	for ctx, kv := range s.data {
		out.data[ctx] = cloneKV(kv)
	}
	return out
}
