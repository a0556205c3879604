package session

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/goliatone/go-errors"
)

// TokenStore is durable client-side storage for the current bearer token.
// Save overwrites, Clear is idempotent, Read never fails: a missing or
// unreadable token reads as absent. The stored token is opaque; presence
// alone never implies a live session, the provider notification stream does.
type TokenStore interface {
	Save(token string) error
	Clear() error
	Read() (string, bool)
}

// FileTokenStore persists the token to a single file scoped to the local
// profile directory, the durable analog of browser local storage.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

var _ TokenStore = (*FileTokenStore)(nil)

// NewFileTokenStore creates a store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to create token directory")
	}

	// Write-then-rename so a crash never leaves a torn token behind.
	tmp, err := os.CreateTemp(dir, ".token-*")
	if err != nil {
		return errors.Wrap(err, errors.CategoryInternal, "failed to stage token file")
	}

	name := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		tmp.Close()
		os.Remove(name)
		return errors.Wrap(err, errors.CategoryInternal, "failed to write token file")
	}

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(name)
		return errors.Wrap(err, errors.CategoryInternal, "failed to restrict token file mode")
	}

	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return errors.Wrap(err, errors.CategoryInternal, "failed to flush token file")
	}

	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return errors.Wrap(err, errors.CategoryInternal, "failed to commit token file")
	}

	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CategoryInternal, "failed to remove token file")
	}
	return nil
}

func (s *FileTokenStore) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return "", false
	}

	token := strings.TrimSpace(string(raw))
	if token == "" {
		return "", false
	}
	return token, true
}

// MemoryTokenStore keeps the token in memory, for tests and embedders that
// opt out of durable persistence.
type MemoryTokenStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

var _ TokenStore = (*MemoryTokenStore)(nil)

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

func (s *MemoryTokenStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

func (s *MemoryTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}

func (s *MemoryTokenStore) Read() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set || s.token == "" {
		return "", false
	}
	return s.token, true
}
