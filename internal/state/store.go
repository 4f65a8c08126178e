package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/danieljhkim/hostconf/internal/fsops"
)

// ErrNoRuns is returned by Latest when nothing has been recorded yet.
var ErrNoRuns = errors.New("no runs recorded")

// RunStore persists run records.
type RunStore interface {
	// Save writes the record atomically, replacing any record with the same ID.
	Save(record *RunRecord) error

	// Load reads one record. Returns os.ErrNotExist if it doesn't exist.
	Load(id string) (*RunRecord, error)

	// List returns the IDs of all records, newest first.
	List() ([]string, error)

	// Latest returns the newest record, or ErrNoRuns.
	Latest() (*RunRecord, error)
}

// FileRunStore implements RunStore using JSON files on disk.
type FileRunStore struct {
	fs      fsops.FS
	runsDir string
}

// NewFileRunStore creates a new FileRunStore rooted at runsDir.
func NewFileRunStore(fs fsops.FS, runsDir string) *FileRunStore {
	return &FileRunStore{fs: fs, runsDir: runsDir}
}

func (s *FileRunStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(s.runsDir, id+".json"), nil
}

// Save writes the record atomically.
func (s *FileRunStore) Save(record *RunRecord) error {
	path, err := s.path(record.ID)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}

	if err := s.fs.MkdirAll(s.runsDir, 0o755); err != nil {
		return fmt.Errorf("failed to create runs directory: %w", err)
	}
	if err := s.fs.AtomicWrite(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// Load reads the record with the given ID.
func (s *FileRunStore) Load(id string) (*RunRecord, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := s.fs.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, os.ErrNotExist
		}
		return nil, fmt.Errorf("failed to read run record: %w", err)
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run record: %w", err)
	}
	return &record, nil
}

// List returns record IDs, newest first. A missing runs directory has no
// records.
func (s *FileRunStore) List() ([]string, error) {
	entries, err := s.fs.ReadDir(s.runsDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	slices.Sort(ids)
	slices.Reverse(ids)
	return ids, nil
}

// Latest returns the newest record.
func (s *FileRunStore) Latest() (*RunRecord, error) {
	ids, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, ErrNoRuns
	}
	return s.Load(ids[0])
}
