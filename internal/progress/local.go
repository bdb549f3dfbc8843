package progress

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// LocalStore persists the progress document as a single JSON file on disk.
// It is the authoritative store for offline use: loads never fail (a corrupt
// or missing file yields a fresh document) and saves degrade to memory-only
// when the underlying storage is unavailable.
type LocalStore struct {
	path      string
	validator *Validator // optional shape check on load

	probeOnce sync.Once
	available bool
}

// NewLocalStore creates a store for the document at path. The validator may
// be nil, in which case only JSON well-formedness gates a load.
func NewLocalStore(path string, validator *Validator) *LocalStore {
	return &LocalStore{path: path, validator: validator}
}

// Available reports whether the backing storage is writable. The probe runs
// once per process and is cached: it writes a sentinel file next to the
// document and removes it.
func (s *LocalStore) Available() bool {
	s.probeOnce.Do(func() {
		sentinel := s.path + ".probe"
		if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
			slog.Warn("local storage unavailable, progress is memory-only this session", "path", s.path, "error", err)
			return
		}
		if err := os.WriteFile(sentinel, []byte("ok"), 0o644); err != nil {
			slog.Warn("local storage unavailable, progress is memory-only this session", "path", s.path, "error", err)
			return
		}
		os.Remove(sentinel)
		s.available = true
	})
	return s.available
}

// Load reads the persisted document. It fails soft: an unreadable, corrupt,
// or mis-shaped payload is logged and replaced by a fresh empty document.
func (s *LocalStore) Load() *Document {
	if !s.Available() {
		return NewDocument()
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("reading progress document failed, starting fresh", "path", s.path, "error", err)
		}
		return NewDocument()
	}

	if s.validator != nil && !s.validator.Valid(raw) {
		slog.Warn("stored progress document failed shape validation, starting fresh", "path", s.path)
		return NewDocument()
	}

	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		slog.Warn("stored progress document is corrupt, starting fresh", "path", s.path, "error", err)
		return NewDocument()
	}

	doc.Normalize()
	if doc.DeviceID == "" {
		fresh := NewDocument()
		doc.DeviceID = fresh.DeviceID
	}
	return doc
}

// Save writes the document. Failures are logged and swallowed: the caller's
// in-memory state stays authoritative for the session even if durability is
// lost.
func (s *LocalStore) Save(doc *Document) {
	if !s.Available() {
		return
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		slog.Error("marshaling progress document failed", "error", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		slog.Warn("writing progress document failed", "path", s.path, "error", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		slog.Warn("replacing progress document failed", "path", s.path, "error", err)
		os.Remove(tmp)
	}
}
