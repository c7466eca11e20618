package planstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/harrison/artisan/internal/filelock"
)

// Store persists Records as one JSON file per goal fingerprint under a base
// directory. Writes are atomic (temp file + rename) and serialized per-goal
// via an advisory file lock, so two processes racing to save the same goal
// never interleave writes.
type Store struct {
	baseDir string
}

// Open ensures baseDir exists and returns a Store rooted there.
func Open(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("planstore: create base dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// Save writes r to disk, overwriting any prior record for the same goal
// fingerprint. Callers should set r.UpdatedAt before calling Save.
func (s *Store) Save(r *Record) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("planstore: marshal: %w", err)
	}
	if err := filelock.LockAndWrite(s.path(r.GoalFingerprint), data); err != nil {
		return fmt.Errorf("planstore: save %s: %w", r.GoalFingerprint, err)
	}
	return nil
}

// Load reads the record for goalFingerprint. Returns *NotFoundError if none
// exists, or *UnsupportedSchemaError if the on-disk record is newer than
// this binary's SchemaVersion.
func (s *Store) Load(goalFingerprint string) (*Record, error) {
	data, err := os.ReadFile(s.path(goalFingerprint))
	if errors.Is(err, os.ErrNotExist) {
		return nil, &NotFoundError{GoalFingerprint: goalFingerprint}
	}
	if err != nil {
		return nil, fmt.Errorf("planstore: read %s: %w", goalFingerprint, err)
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("planstore: decode %s: %w", goalFingerprint, err)
	}
	if r.SchemaVersion > SchemaVersion {
		return nil, &UnsupportedSchemaError{GoalFingerprint: goalFingerprint, FoundVersion: r.SchemaVersion}
	}
	return &r, nil
}

// ListRecent returns up to n records ordered by UpdatedAt descending
// (most recently touched first).
func (s *Store) ListRecent(n int) ([]*Record, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("planstore: list dir: %w", err)
	}

	var records []*Record
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		fingerprint := strings.TrimSuffix(e.Name(), ".json")
		r, err := s.Load(fingerprint)
		if err != nil {
			continue // skip unreadable/unsupported records rather than fail the whole listing
		}
		records = append(records, r)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].UpdatedAt.After(records[j].UpdatedAt)
	})
	if n > 0 && len(records) > n {
		records = records[:n]
	}
	return records, nil
}

func (s *Store) path(goalFingerprint string) string {
	return filepath.Join(s.baseDir, goalFingerprint+".json")
}
