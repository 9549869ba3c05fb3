// Package wal implements the write-ahead-log storage engine (spec §4.10,
// C10): a transactional, cached key/value store backed by a base snapshot
// plus append-only commit segments.
package wal

import (
	"strings"

	"github.com/joshuafuller/matterlink/internal/errors"
)

// ValidateContextPath checks the context-path invariants from spec §4.10:
// "contexts may not be empty, may not contain '..', and may not start/end
// with '.'".
func ValidateContextPath(ctxPath string) error {
	if ctxPath == "" {
		return &errors.StorageError{Operation: "validate context", Message: "context path must not be empty"}
	}
	if strings.Contains(ctxPath, "..") {
		return &errors.StorageError{Operation: "validate context", Message: "context path must not contain '..'"}
	}
	if strings.HasPrefix(ctxPath, ".") || strings.HasSuffix(ctxPath, ".") {
		return &errors.StorageError{Operation: "validate context", Message: "context path must not start or end with '.'"}
	}
	return nil
}

// DotKey joins a context path and leaf key into the dot-joined form spec
// §4.10 describes ("Keys: dot-joined context path + leaf key").
func DotKey(ctxPath, key string) string {
	return ctxPath + "." + key
}

// EncodeContext maps a context path to a filesystem-safe directory name for
// the blobs tree (spec §6: "<root>/blobs/<encoded-context>/<key>"). Dots
// are safe as path separators between context segments already, but the
// path separator itself needs escaping.
func EncodeContext(ctxPath string) string {
	return strings.ReplaceAll(ctxPath, "/", "%2F")
}
