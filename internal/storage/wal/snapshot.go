package wal

import (
	"bytes"
	"encoding/json"

	"github.com/klauspost/compress/gzip"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/fsab"
)

// Snapshot is the full store content at a point in time (spec §3
// "Snapshot: {commit-id, ts, data}"), nested context-path -> key -> value.
type Snapshot struct {
	CommitID CommitID
	TS       int64
	Data     map[string]map[string]interface{}
}

type wireSnapshot struct {
	Version  int                               `json:"version"`
	CommitID int64                              `json:"commit-id"`
	TS       int64                              `json:"ts"`
	Data     map[string]map[string]interface{} `json:"data"`
}

// EncodeSnapshot serializes snap as the UTF-8 JSON format from spec §6
// ("{version: 1, commit-id, ts, data}").
func EncodeSnapshot(snap Snapshot) ([]byte, error) {
	ws := wireSnapshot{Version: 1, CommitID: int64(snap.CommitID), TS: snap.TS, Data: snap.Data}
	if ws.Data == nil {
		ws.Data = map[string]map[string]interface{}{}
	}
	return json.Marshal(ws)
}

// DecodeSnapshot parses the UTF-8 JSON snapshot format.
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var ws wireSnapshot
	if err := json.Unmarshal(data, &ws); err != nil {
		return Snapshot{}, &errors.StorageError{Operation: "decode snapshot", Message: "malformed snapshot JSON", Err: err}
	}
	return Snapshot{CommitID: CommitID(ws.CommitID), TS: ws.TS, Data: ws.Data}, nil
}

// WriteSnapshotAtomic writes snap to dir's snapshot file, gzipped if
// gzipped is true, via a temp-file-then-rename so a reader never observes
// a partially-written snapshot.
func WriteSnapshotAtomic(dir fsab.Directory, snap Snapshot, gzipped bool) error {
	raw, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	name := "snapshot.json"
	if gzipped {
		name = "snapshot.json.gz"
		var buf bytes.Buffer
		gz := gzip.NewWriter(&buf)
		if _, err := gz.Write(raw); err != nil {
			return err
		}
		if err := gz.Close(); err != nil {
			return err
		}
		raw = buf.Bytes()
	}

	tmpName := name + ".tmp"
	tmp := dir.File(tmpName)
	if err := tmp.Write(raw); err != nil {
		return err
	}
	return tmp.Rename(name)
}

// ReadSnapshot loads dir's snapshot file (gzipped or not), returning a
// zero-value empty Snapshot if none exists yet.
func ReadSnapshot(dir fsab.Directory) (Snapshot, error) {
	gz := dir.File("snapshot.json.gz")
	if ok, _ := gz.Exists(); ok {
		data, err := gz.ReadBytes()
		if err != nil {
			return Snapshot{}, err
		}
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return Snapshot{}, &errors.StorageError{Operation: "read snapshot", Message: "corrupt gzip snapshot", Err: err}
		}
		defer r.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(r); err != nil {
			return Snapshot{}, err
		}
		return DecodeSnapshot(buf.Bytes())
	}

	plain := dir.File("snapshot.json")
	if ok, _ := plain.Exists(); ok {
		data, err := plain.ReadBytes()
		if err != nil {
			return Snapshot{}, err
		}
		return DecodeSnapshot(data)
	}

	return Snapshot{Data: map[string]map[string]interface{}{}}, nil
}
