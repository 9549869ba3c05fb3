package wal

import "github.com/joshuafuller/matterlink/internal/errors"

// PutBlob writes data as an opaque, non-transactional blob under ctxPath/key
// (spec §4.10: "<root>/blobs/<encoded-context>/<key> — opaque byte blobs
// (non-transactional)").
func (s *Store) PutBlob(ctxPath, key string, data []byte) error {
	if err := ValidateContextPath(ctxPath); err != nil {
		return err
	}
	dir := s.root.Directory("blobs").Directory(EncodeContext(ctxPath))
	if err := dir.Mkdir(); err != nil {
		return &errors.StorageError{Operation: "put blob", Message: "cannot create blob directory", Err: err}
	}
	return dir.File(key).Write(data)
}

// GetBlob reads a previously stored blob.
func (s *Store) GetBlob(ctxPath, key string) ([]byte, error) {
	dir := s.root.Directory("blobs").Directory(EncodeContext(ctxPath))
	f := dir.File(key)
	ok, err := f.Exists()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &errors.StorageError{Operation: "get blob", Message: "blob does not exist"}
	}
	return f.ReadBytes()
}

// DeleteBlob removes a stored blob, if present.
func (s *Store) DeleteBlob(ctxPath, key string) error {
	dir := s.root.Directory("blobs").Directory(EncodeContext(ctxPath))
	return dir.File(key).Delete()
}
