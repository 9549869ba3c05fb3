package wal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/fsab"
)

// wireOpWithContext carries the context alongside the op so it round-trips
// through JSON without a nested-map encoding.
type wireOpWithContext struct {
	Op      string      `json:"op"`
	Context string      `json:"context"`
	Key     string      `json:"key,omitempty"`
	Value   interface{} `json:"value,omitempty"`
}

type wireCommit struct {
	TS  int64                `json:"ts"`
	Ops []wireOpWithContext `json:"ops"`
}

type wireLine struct {
	ID     int64      `json:"id"`
	Commit wireCommit `json:"commit"`
}

// EncodeCommitLine serializes one CommitRecord as the JSON-per-line format
// from spec §6 ("each line {id, commit: {ts, ops}}").
func EncodeCommitLine(rec CommitRecord) ([]byte, error) {
	wl := wireLine{ID: int64(rec.ID), Commit: wireCommit{TS: rec.TS}}
	for _, op := range rec.Ops {
		var kind string
		switch op.Kind {
		case OpSet:
			kind = "set"
		case OpDelete:
			kind = "delete"
		default:
			kind = "clear-all"
		}
		wl.Commit.Ops = append(wl.Commit.Ops, wireOpWithContext{Op: kind, Context: op.Context, Key: op.Key, Value: op.Value})
	}
	line, err := json.Marshal(wl)
	if err != nil {
		return nil, err
	}
	return append(line, '\n'), nil
}

// DecodeCommitLine parses one JSON line into a CommitRecord. Torn trailing
// lines (a truncated last write) are reported via the bool return so
// callers can stop replay cleanly instead of failing the whole read (spec
// §4.10: "A reader tolerates missing trailing bytes in the active
// segment").
func DecodeCommitLine(line []byte) (CommitRecord, bool) {
	var wl wireLine
	if err := json.Unmarshal(line, &wl); err != nil {
		return CommitRecord{}, false
	}
	rec := CommitRecord{ID: CommitID(wl.ID), TS: wl.Commit.TS}
	for _, wop := range wl.Commit.Ops {
		op, err := decodeWireOp(wop)
		if err != nil {
			return CommitRecord{}, false
		}
		rec.Ops = append(rec.Ops, op)
	}
	return rec, true
}

func decodeWireOp(w wireOpWithContext) (Op, error) {
	switch w.Op {
	case "set":
		return Op{Kind: OpSet, Context: w.Context, Key: w.Key, Value: w.Value}, nil
	case "delete":
		return Op{Kind: OpDelete, Context: w.Context, Key: w.Key}, nil
	case "clear-all":
		return Op{Kind: OpClearAll, Context: w.Context}, nil
	default:
		return Op{}, &errors.StorageError{Operation: "decode op", Message: "unknown op kind " + w.Op}
	}
}

// ReadSegmentLines reads every complete line from a (possibly gzipped)
// segment file, skipping a torn trailing line instead of failing.
func ReadSegmentLines(f fsab.File, gzipped bool) ([]CommitRecord, error) {
	data, err := f.ReadBytes()
	if err != nil {
		return nil, err
	}

	var r io.Reader = bytes.NewReader(data)
	if gzipped {
		gz, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, &errors.StorageError{Operation: "open segment", Message: "corrupt gzip segment", Err: err}
		}
		defer gz.Close()
		r = gz
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var out []CommitRecord
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		rec, ok := DecodeCommitLine(line)
		if !ok {
			// Torn or corrupt line: per §4.10, tolerate a truncated tail
			// and stop replay here rather than erroring.
			break
		}
		out = append(out, rec)
	}
	return out, nil
}

// CompressSegment gzips src's bytes into dst (used by the compression
// worker to turn a rotated <N>.jsonl into <N>.jsonl.gz).
func CompressSegment(src fsab.File, dst fsab.File) error {
	data, err := src.ReadBytes()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return dst.Write(buf.Bytes())
}
