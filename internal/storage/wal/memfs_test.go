package wal

import (
	"sync"
	"time"

	"github.com/joshuafuller/matterlink/internal/errors"
	"github.com/joshuafuller/matterlink/internal/fsab"
)

// memDirectory is an in-memory fsab.Directory double for exercising Store
// without touching the real filesystem.
type memDirectory struct {
	path string
	root *memRoot
}

// memRoot is the shared backing store all memDirectory/memFile handles for
// one tree point into, keyed by full path.
type memRoot struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
}

func newMemDirectory(path string) *memDirectory {
	return &memDirectory{path: path, root: &memRoot{files: map[string][]byte{}, dirs: map[string]bool{path: true}}}
}

func (d *memDirectory) Path() string { return d.path }

func (d *memDirectory) Mkdir() error {
	d.root.mu.Lock()
	defer d.root.mu.Unlock()
	d.root.dirs[d.path] = true
	return nil
}

func (d *memDirectory) Entries() ([]string, error) {
	d.root.mu.Lock()
	defer d.root.mu.Unlock()
	prefix := d.path + "/"
	seen := map[string]bool{}
	var out []string
	for p := range d.root.files {
		if rest, ok := cutPrefix(p, prefix); ok && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	for p := range d.root.dirs {
		if p == d.path {
			continue
		}
		if rest, ok := cutPrefix(p, prefix); ok && !seen[rest] {
			seen[rest] = true
			out = append(out, rest)
		}
	}
	return out, nil
}

func cutPrefix(s, prefix string) (string, bool) {
	if len(s) <= len(prefix) || s[:len(prefix)] != prefix {
		return "", false
	}
	rest := s[len(prefix):]
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			return rest[:i], true
		}
	}
	return rest, true
}

func (d *memDirectory) File(name string) fsab.File {
	return &memFile{path: d.path + "/" + name, name: name, root: d.root}
}

func (d *memDirectory) Directory(name string) fsab.Directory {
	child := d.path + "/" + name
	d.root.mu.Lock()
	d.root.dirs[child] = true
	d.root.mu.Unlock()
	return &memDirectory{path: child, root: d.root}
}

func (d *memDirectory) Exists() (bool, error) {
	d.root.mu.Lock()
	defer d.root.mu.Unlock()
	return d.root.dirs[d.path], nil
}

func (d *memDirectory) Stat() (fsab.Stat, error) {
	return fsab.Stat{Type: fsab.EntryDirectory}, nil
}

type memFile struct {
	path string
	name string
	root *memRoot
}

func (f *memFile) Name() string { return f.name }

func (f *memFile) Exists() (bool, error) {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	_, ok := f.root.files[f.path]
	return ok, nil
}

func (f *memFile) Stat() (fsab.Stat, error) {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	data, ok := f.root.files[f.path]
	if !ok {
		return fsab.Stat{}, &errors.StorageError{Operation: "stat", Message: "no such file"}
	}
	return fsab.Stat{Size: int64(len(data)), Type: fsab.EntryFile}, nil
}

func (f *memFile) Write(data []byte) error {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.root.files[f.path] = cp
	return nil
}

func (f *memFile) ReadBytes() ([]byte, error) {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	data, ok := f.root.files[f.path]
	if !ok {
		return nil, &errors.StorageError{Operation: "read", Message: "no such file"}
	}
	return append([]byte(nil), data...), nil
}

func (f *memFile) ReadText(lineMode bool) ([]string, error) {
	data, err := f.ReadBytes()
	if err != nil {
		return nil, err
	}
	if !lineMode {
		return []string{string(data)}, nil
	}
	return splitLines(string(data)), nil
}

func (f *memFile) Rename(newName string) error {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	data, ok := f.root.files[f.path]
	if !ok {
		return &errors.StorageError{Operation: "rename", Message: "no such file"}
	}
	delete(f.root.files, f.path)
	dir := dirOf(f.path)
	newPath := dir + "/" + newName
	f.root.files[newPath] = data
	f.path = newPath
	f.name = newName
	return nil
}

func (f *memFile) Delete() error {
	f.root.mu.Lock()
	defer f.root.mu.Unlock()
	delete(f.root.files, f.path)
	return nil
}

func (f *memFile) Open(mode string) (fsab.WriteHandle, error) {
	if mode == "truncate" {
		f.root.mu.Lock()
		delete(f.root.files, f.path)
		f.root.mu.Unlock()
	}
	return &memWriteHandle{file: f}, nil
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return ""
}

type memWriteHandle struct {
	file *memFile
}

func (h *memWriteHandle) Write(p []byte) (int, error) {
	h.file.root.mu.Lock()
	defer h.file.root.mu.Unlock()
	h.file.root.files[h.file.path] = append(h.file.root.files[h.file.path], p...)
	return len(p), nil
}

func (h *memWriteHandle) Fsync() error { return nil }
func (h *memWriteHandle) Close() error { return nil }

// fakeClock is a manually-advanced clock.Clock double so tests can trigger
// the periodic workers deterministically without sleeping.
type fakeClock struct {
	mu     sync.Mutex
	millis int64
	waiter chan time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{waiter: make(chan time.Time, 1)}
}

func (c *fakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.millis
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	return c.waiter
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.millis += d.Milliseconds()
	c.mu.Unlock()
}

func (c *fakeClock) Fire() {
	c.waiter <- time.Now()
}
