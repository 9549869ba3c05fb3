package wal

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/fsab"
)

// segmentName formats the zero-padded active-segment filename from spec §6
// ("<NNNNNN>.jsonl" active, "<NNNNNN>.jsonl.gz" rotated).
func segmentName(seq int, gzipped bool) string {
	if gzipped {
		return fmt.Sprintf("%06d.jsonl.gz", seq)
	}
	return fmt.Sprintf("%06d.jsonl", seq)
}

// parseSegmentName recovers the sequence number and gzip flag from a
// segment filename, or ok=false if name isn't a segment file.
func parseSegmentName(name string) (seq int, gzipped bool, ok bool) {
	base := name
	if strings.HasSuffix(base, ".jsonl.gz") {
		gzipped = true
		base = strings.TrimSuffix(base, ".jsonl.gz")
	} else if strings.HasSuffix(base, ".jsonl") {
		base = strings.TrimSuffix(base, ".jsonl")
	} else {
		return 0, false, false
	}
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0, false, false
	}
	return n, gzipped, true
}

// segmentInfo describes one on-disk segment discovered during Open.
type segmentInfo struct {
	Seq     int
	Gzipped bool
	Name    string
}

// ListSegments returns every segment file under dir, ordered by sequence
// number ascending (oldest first).
func ListSegments(dir fsab.Directory) ([]segmentInfo, error) {
	names, err := dir.Entries()
	if err != nil {
		return nil, err
	}
	var out []segmentInfo
	for _, name := range names {
		seq, gz, ok := parseSegmentName(name)
		if !ok {
			continue
		}
		out = append(out, segmentInfo{Seq: seq, Gzipped: gz, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// segmentWriter owns the active (uncompressed) segment file, appending
// commit lines and rotating to a fresh segment once MaxSegmentSize is
// exceeded (spec §4.10: "segments rotate once they exceed a configured
// max-segment-size").
type segmentWriter struct {
	dir            fsab.Directory
	seq            int
	maxSegmentSize int64
	handle         fsab.WriteHandle
	size           int64
}

// openSegmentWriter opens (creating if necessary) the active segment with
// sequence seq for appending.
func openSegmentWriter(dir fsab.Directory, seq int, maxSegmentSize int64) (*segmentWriter, error) {
	f := dir.File(segmentName(seq, false))
	h, err := f.Open("append")
	if err != nil {
		return nil, &errors.StorageError{Operation: "open segment", Message: "cannot open active segment for append", Err: err}
	}
	st, err := f.Stat()
	var size int64
	if err == nil {
		size = st.Size
	}
	return &segmentWriter{dir: dir, seq: seq, maxSegmentSize: maxSegmentSize, handle: h, size: size}, nil
}

// Append writes rec to the active segment and fsyncs it, per the durability
// requirement in spec §4.10 ("a commit is durable once its encoded line has
// been fsynced to the active segment").
func (w *segmentWriter) Append(rec CommitRecord) error {
	line, err := EncodeCommitLine(rec)
	if err != nil {
		return err
	}
	n, err := w.handle.Write(line)
	if err != nil {
		return &errors.StorageError{Operation: "append commit", Message: "write to active segment failed", Err: err}
	}
	if err := w.handle.Fsync(); err != nil {
		return &errors.StorageError{Operation: "append commit", Message: "fsync of active segment failed", Err: err}
	}
	w.size += int64(n)
	return nil
}

// NeedsRotation reports whether the active segment has exceeded its
// configured size limit.
func (w *segmentWriter) NeedsRotation() bool {
	return w.maxSegmentSize > 0 && w.size >= w.maxSegmentSize
}

// Rotate closes the current active segment and opens a new one with the
// next sequence number, returning the name of the segment that was just
// closed so the caller can hand it to the compression worker.
func (w *segmentWriter) Rotate() (closedName string, err error) {
	closedName = segmentName(w.seq, false)
	if err := w.handle.Close(); err != nil {
		return "", &errors.StorageError{Operation: "rotate segment", Message: "close of rotated segment failed", Err: err}
	}
	next, err := openSegmentWriter(w.dir, w.seq+1, w.maxSegmentSize)
	if err != nil {
		return "", err
	}
	*w = *next
	return closedName, nil
}

func (w *segmentWriter) Close() error {
	if w.handle == nil {
		return nil
	}
	return w.handle.Close()
}
