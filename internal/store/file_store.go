package store

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"ciphera/internal/domain"
	"ciphera/internal/domain/interfaces"
	"ciphera/internal/primitives"
)

const (
	saltFileName = ".salt"
	saltSize     = 16
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
)

var _ interfaces.SecureStore = (*FileStore)(nil)

// FileStore is a SecureStore backed by one encrypted file per entry,
// nested under home the same way the entry's namespaced name is
// structured (e.g. "session/bob/device1" lives at
// home/session/bob/device1.enc).
type FileStore struct {
	home string
	kek  []byte

	mu sync.Mutex
}

// Open unlocks (creating if absent) the encrypted store rooted at home,
// deriving the key-encryption key from passphrase via scrypt. The salt
// is generated once on first use and persisted alongside the store.
func Open(home, passphrase string) (*FileStore, error) {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return nil, fmt.Errorf("store: create home dir: %w", err)
	}

	salt, err := loadOrCreateSalt(home)
	if err != nil {
		return nil, err
	}
	kek, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, chacha20poly1305.KeySize)
	if err != nil {
		return nil, fmt.Errorf("store: derive key: %w", err)
	}
	return &FileStore{home: home, kek: kek}, nil
}

func loadOrCreateSalt(home string) ([]byte, error) {
	path := filepath.Join(home, saltFileName)
	existing, err := os.ReadFile(path)
	if err == nil {
		if len(existing) != saltSize {
			return nil, errors.New("store: corrupt salt file")
		}
		return existing, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("store: read salt: %w", err)
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("store: generate salt: %w", err)
	}
	if err := os.WriteFile(path, salt, 0o600); err != nil {
		return nil, fmt.Errorf("store: write salt: %w", err)
	}
	return salt, nil
}

// entryPath maps a namespaced name like "spk/current_id" or
// "session/bob/device1" onto a path under home, rejecting anything that
// could escape it.
func (s *FileStore) entryPath(name string) (string, error) {
	if name == "" {
		return "", errors.New("store: empty name")
	}
	clean := filepath.Clean(name)
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("store: invalid name %q", name)
	}
	return filepath.Join(s.home, clean+".enc"), nil
}

// Set encrypts value under the store's KEK and atomically writes it to
// the file name maps to.
func (s *FileStore) Set(_ context.Context, name string, value []byte) error {
	path, err := s.entryPath(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := primitives.Seal(s.kek, nil, value)
	if err != nil {
		return fmt.Errorf("store: seal %q: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("store: create parent dir for %q: %w", name, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, sealed, 0o600); err != nil {
		return fmt.Errorf("store: write %q: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit %q: %w", name, err)
	}
	return nil
}

// Get decrypts and returns the value stored under name, or ok=false if
// nothing has been set.
func (s *FileStore) Get(_ context.Context, name string) ([]byte, bool, error) {
	path, err := s.entryPath(name)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: read %q: %w", name, err)
	}

	plain, err := primitives.Open(s.kek, nil, sealed)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %q", domain.ErrStorageFailure, name)
	}
	return plain, true, nil
}

// Remove deletes the entry under name. Removing an absent entry is not an
// error.
func (s *FileStore) Remove(_ context.Context, name string) error {
	path, err := s.entryPath(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: remove %q: %w", name, err)
	}
	return nil
}

// Clear erases every entry ever written, including the root salt, so a
// subsequent Open starts from a fresh key.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.home)
	if err != nil {
		return fmt.Errorf("store: list home: %w", err)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(s.home, e.Name())); err != nil {
			return fmt.Errorf("store: clear %q: %w", e.Name(), err)
		}
	}
	return nil
}
