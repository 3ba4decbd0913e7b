package prefs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
)

// DefaultFileName is the preferences file inside the config directory.
const DefaultFileName = "prefs.toml"

const lockRetryDelay = 50 * time.Millisecond

type fileDoc struct {
	SuppressOnboarding bool `toml:"suppress_onboarding"`
}

// FileStore keeps the flag in a small TOML file.
type FileStore struct {
	path string
	lock *flock.Flock
}

// Compile-time interface check.
var _ Store = (*FileStore)(nil)

// NewFileStore creates a FileStore at path. The file and its directory are
// created on the first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, lock: flock.New(path + ".lock")}
}

// DefaultPath returns ~/.config/gallery-sweep/prefs.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "gallery-sweep", DefaultFileName), nil
}

// Path returns the file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (bool, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read prefs %s: %w", s.path, err)
	}
	var doc fileDoc
	if err := toml.Unmarshal(data, &doc); err != nil {
		return false, fmt.Errorf("parse prefs %s: %w", s.path, err)
	}
	return doc.SuppressOnboarding, nil
}

// Save writes the file through a temp file and rename while holding an
// exclusive lock, so concurrent writers never leave a torn file.
func (s *FileStore) Save(ctx context.Context, suppressOnboarding bool) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock prefs: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock prefs: %s is busy", s.path)
	}
	defer s.lock.Unlock()

	data, err := toml.Marshal(fileDoc{SuppressOnboarding: suppressOnboarding})
	if err != nil {
		return fmt.Errorf("encode prefs: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".prefs-*.toml")
	if err != nil {
		return fmt.Errorf("create temp prefs: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp prefs: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp prefs: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace prefs: %w", err)
	}

	log.Debug().Str("path", s.path).Bool("suppress_onboarding", suppressOnboarding).Msg("Saved preferences")
	return nil
}
