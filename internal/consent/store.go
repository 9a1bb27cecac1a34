// Package consent persists per-source Wayland portal restore tokens.
//
// The store is process-wide state with explicit initialisation (injected
// into the Wayland backend, never lazily globally constructed). Reads are
// lock-free with respect to each other; writes serialise under an internal
// mutex. Store writes a temp file and renames it into place, so a reader
// never observes a half-written file after a Store; Delete rewrites the
// file in place.
package consent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bryanchriswhite/wincap/internal/wincap"
)

// Store is a keyed source_id -> restore_token map backed by a single
// OS-user-private file.
type Store struct {
	path string
	mu   sync.RWMutex
	data map[string]string
}

// NewFileStore opens (or creates) the token file at path. The containing
// directory is created with 0700 permissions if missing.
func NewFileStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, wincap.WrapError(wincap.ErrInternal, "consent", err, "create token store directory")
	}

	s := &Store{path: path, data: make(map[string]string)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	raw, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "read token store %s", s.path)
	}
	if len(raw) == 0 {
		return nil
	}
	var data map[string]string
	if err := json.Unmarshal(raw, &data); err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "parse token store %s", s.path)
	}
	s.data = data
	return nil
}

// Store atomically replaces the token for sourceID. Concurrent readers
// never observe a half-written file: the new contents are written to a
// temp file in the same directory and then renamed into place.
func (s *Store) Store(sourceID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]string, len(s.data)+1)
	for k, v := range s.data {
		next[k] = v
	}
	next[sourceID] = token

	raw, err := json.Marshal(next)
	if err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "marshal token store")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".wincap-tokens-*")
	if err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "create temp token file")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "write temp token file")
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "chmod temp token file")
	}
	if err := tmp.Close(); err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "close temp token file")
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "rename temp token file into place")
	}

	s.data = next
	return nil
}

// Read returns the stored token for sourceID, or ok=false if none exists.
func (s *Store) Read(sourceID string) (token string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok = s.data[sourceID]
	return token, ok
}

// Snapshot returns a copy of every stored source id to token mapping, for
// callers that only need to observe state (e.g. a diagnostics poller)
// without holding the store's lock.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// Has reports whether a token is stored for sourceID.
func (s *Store) Has(sourceID string) bool {
	_, ok := s.Read(sourceID)
	return ok
}

// Delete removes any stored token for sourceID.
func (s *Store) Delete(sourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.data[sourceID]; !ok {
		return nil
	}

	next := make(map[string]string, len(s.data))
	for k, v := range s.data {
		if k != sourceID {
			next[k] = v
		}
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "marshal token store")
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return wincap.WrapError(wincap.ErrInternal, "consent", err, "write token store")
	}

	s.data = next
	return nil
}

// DefaultPath returns the per-user token store path, mirroring the
// teacher's os.UserConfigDir()-based layout.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return "", fmt.Errorf("resolve config directory: %w", err)
		}
		dir = home
	}
	return filepath.Join(dir, "wincap", "consent_tokens.json"), nil
}
