// Package store persists the JSON-encoded collections. It is the only
// place in the application where disk I/O occurs; every other component
// operates on in-memory structures and calls through this interface.
package store

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/RobDeGeorge/fathertime/internal/errors"
	"github.com/RobDeGeorge/fathertime/internal/logfields"
)

// Collection names the persisted JSON documents.
type Collection string

const (
	CollectionTimers     Collection = "timers"
	CollectionSessions   Collection = "sessions"
	CollectionLastTick   Collection = "last-tick"
	CollectionDailyCache Collection = "daily-cache"
)

// Validator is implemented by collection documents that check their own
// top-level shape after unmarshalling.
type Validator interface {
	Validate() error
}

// Store reads and writes collection files under a data directory.
// Writes are atomic: serialize to a temporary path, then rename over the
// destination, so a crash mid-write never leaves a half-written file.
type Store struct {
	dataDir string
	mu      sync.Mutex
}

// New creates a store rooted at dataDir, creating the directory if needed.
func New(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, errors.PersistenceError("create data directory", err).
			WithContext("data_dir", dataDir)
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the root data directory.
func (s *Store) DataDir() string { return s.dataDir }

// Path returns the file path backing a collection.
func (s *Store) Path(c Collection) string {
	return filepath.Join(s.dataDir, string(c)+".json")
}

// Save atomically writes a collection document.
func (s *Store) Save(c Collection, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.PersistenceError("marshal "+string(c), err)
	}

	path := s.Path(c)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.PersistenceError("write "+string(c), err).
			WithContext("path", tempPath)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return errors.PersistenceError("replace "+string(c), err).
			WithContext("path", path)
	}

	slog.Debug("collection saved", logfields.Collection(string(c)), logfields.Path(path))
	return nil
}

// Load reads a collection document into out. A missing file leaves out at
// its zero value (the collection's empty default). A file whose contents
// fail to parse or validate is renamed aside as a .corrupt backup and out
// is left at its empty default; the application stays usable and the
// corruption never propagates past startup.
func (s *Store) Load(c Collection, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(c)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.PersistenceError("read "+string(c), err).
			WithContext("path", path)
	}

	if err := json.Unmarshal(data, out); err != nil {
		s.quarantine(c, path, errors.CorruptDataError(string(c), err))
		resetValue(out)
		return nil
	}
	if v, ok := out.(Validator); ok {
		if err := v.Validate(); err != nil {
			s.quarantine(c, path, errors.CorruptDataError(string(c), err))
			resetValue(out)
			return nil
		}
	}
	return nil
}

// quarantine moves a corrupt collection file aside so the next save starts clean.
func (s *Store) quarantine(c Collection, path string, cause error) {
	backup := path + ".corrupt"
	slog.Warn("corrupt collection file, resetting to empty default",
		logfields.Collection(string(c)),
		logfields.Path(backup),
		logfields.Error(cause))
	if err := os.Rename(path, backup); err != nil {
		slog.Error("failed to back up corrupt file", logfields.Path(path), logfields.Error(err))
	}
}

// SaveArchive writes a named document under the archive directory.
// Archives are write-only history outside the live collections.
func (s *Store) SaveArchive(name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	archiveDir := filepath.Join(s.dataDir, "archive")
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return errors.PersistenceError("create archive directory", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.PersistenceError("marshal archive "+name, err)
	}
	path := filepath.Join(archiveDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.PersistenceError("write archive "+name, err).
			WithContext("path", path)
	}
	slog.Info("sessions archived", logfields.Path(path))
	return nil
}

// Delete removes a collection file. Missing files are not an error.
func (s *Store) Delete(c Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(c)); err != nil && !os.IsNotExist(err) {
		return errors.PersistenceError("delete "+string(c), err)
	}
	return nil
}

// resetValue zeroes the value pointed to by out after a corrupt load so a
// partially-populated document never leaks into memory.
func resetValue(out any) {
	v := reflect.ValueOf(out)
	if v.Kind() == reflect.Pointer && !v.IsNil() {
		v.Elem().Set(reflect.Zero(v.Elem().Type()))
	}
}
