// Package cache implements the content-addressed execution cache: a
// SQLite index over blobs stored on disk, with TTL and byte-budget
// eviction (spec component C5).
package cache

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harrison/artisan/internal/filelock"
	"github.com/harrison/artisan/internal/hasher"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Stats summarizes the cache's current occupancy.
type Stats struct {
	Entries    int
	TotalBytes int64
}

// Store is a content-addressed blob cache backed by a SQLite index.
// Safe for concurrent use from multiple goroutines; blob writes are atomic
// across processes via filelock.AtomicWrite.
type Store struct {
	db       *sql.DB
	baseDir  string
	maxBytes int64 // 0 disables byte-budget eviction
}

// Open creates (if needed) and opens the cache rooted at baseDir. maxBytes
// bounds total blob size; Put evicts least-recently-accessed entries to
// stay under the budget. maxBytes <= 0 disables the budget.
func Open(baseDir string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("cache: create base dir: %w", err)
	}
	dbPath := filepath.Join(baseDir, "index.sqlite3")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("cache: open index: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("cache: init schema: %w", err)
	}
	return &Store{db: db, baseDir: baseDir, maxBytes: maxBytes}, nil
}

// Close closes the underlying index database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put atomically writes data under fingerprint. ttl <= 0 means the entry
// never expires on its own (it can still be evicted under the byte
// budget).
func (s *Store) Put(ctx context.Context, fingerprint string, data []byte, ttl time.Duration) error {
	blobPath := s.blobPath(fingerprint)
	if err := filelock.AtomicWrite(blobPath, data); err != nil {
		return fmt.Errorf("cache: write blob: %w", err)
	}

	contentHash := hasher.HashBytes(data)
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: time.Now().Add(ttl), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (fingerprint, blob_path, size_bytes, content_hash, created_at, last_accessed_at, expires_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			blob_path=excluded.blob_path,
			size_bytes=excluded.size_bytes,
			content_hash=excluded.content_hash,
			last_accessed_at=CURRENT_TIMESTAMP,
			expires_at=excluded.expires_at
	`, fingerprint, blobPath, len(data), contentHash, expiresAt)
	if err != nil {
		return fmt.Errorf("cache: index put: %w", err)
	}

	if s.maxBytes > 0 {
		if err := s.evictToBudget(ctx); err != nil {
			return fmt.Errorf("cache: evict: %w", err)
		}
	}
	return nil
}

// Evict re-applies the byte-budget LRU eviction a Put would trigger,
// without writing a new entry. A no-op when no byte budget is configured.
func (s *Store) Evict(ctx context.Context) error {
	if s.maxBytes <= 0 {
		return nil
	}
	return s.evictToBudget(ctx)
}

// Get returns the cached blob and its recorded output hash for fingerprint.
// The output hash is the content hash of the original produced output (not
// the fingerprint itself), so callers can seed a dependent's fingerprint or
// a change-detector comparison with the same hash a fresh produce would
// have set. A missing or expired entry returns *MissError. A blob whose
// on-disk content no longer hashes to the value recorded at Put time
// returns *CorruptionError and removes the entry, so a subsequent Get is a
// clean miss.
func (s *Store) Get(ctx context.Context, fingerprint string) ([]byte, string, error) {
	var blobPath, contentHash string
	var expiresAt sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT blob_path, content_hash, expires_at FROM cache_entries WHERE fingerprint = ?
	`, fingerprint).Scan(&blobPath, &contentHash, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", &MissError{Fingerprint: fingerprint}
	}
	if err != nil {
		return nil, "", fmt.Errorf("cache: index get: %w", err)
	}

	if expiresAt.Valid && time.Now().After(expiresAt.Time) {
		_ = s.remove(ctx, fingerprint, blobPath)
		return nil, "", &MissError{Fingerprint: fingerprint}
	}

	data, err := os.ReadFile(blobPath)
	if err != nil {
		_ = s.remove(ctx, fingerprint, blobPath)
		return nil, "", &MissError{Fingerprint: fingerprint}
	}

	if hasher.HashBytes(data) != contentHash {
		_ = s.remove(ctx, fingerprint, blobPath)
		return nil, "", &CorruptionError{Fingerprint: fingerprint, BlobPath: blobPath}
	}

	_, _ = s.db.ExecContext(ctx, `UPDATE cache_entries SET last_accessed_at = CURRENT_TIMESTAMP WHERE fingerprint = ?`, fingerprint)
	return data, contentHash, nil
}

// Invalidate removes the entry for fingerprint, if any, along with its
// blob. A no-op when no entry exists. Used to force a miss on an artifact
// the change detector flagged output_modified: its fingerprint alone (a
// function of contract and dep hashes) is blind to an out-of-band edit of
// its produced file, so the stale entry has to be evicted explicitly.
func (s *Store) Invalidate(ctx context.Context, fingerprint string) error {
	var blobPath string
	err := s.db.QueryRowContext(ctx, `SELECT blob_path FROM cache_entries WHERE fingerprint = ?`, fingerprint).Scan(&blobPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("cache: invalidate lookup: %w", err)
	}
	return s.remove(ctx, fingerprint, blobPath)
}

// Stats reports the current entry count and total blob size.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM cache_entries`).Scan(&st.Entries, &st.TotalBytes)
	if err != nil {
		return Stats{}, fmt.Errorf("cache: stats: %w", err)
	}
	return st, nil
}

// Clear removes every entry and its blob.
func (s *Store) Clear(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint, blob_path FROM cache_entries`)
	if err != nil {
		return fmt.Errorf("cache: clear query: %w", err)
	}
	type entry struct{ fingerprint, blobPath string }
	var entries []entry
	for rows.Next() {
		var e entry
		if err := rows.Scan(&e.fingerprint, &e.blobPath); err != nil {
			rows.Close()
			return fmt.Errorf("cache: clear scan: %w", err)
		}
		entries = append(entries, e)
	}
	rows.Close()

	for _, e := range entries {
		_ = os.Remove(e.blobPath)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache: clear delete: %w", err)
	}
	return nil
}

// evictToBudget removes least-recently-accessed entries until total size
// is at or under maxBytes.
func (s *Store) evictToBudget(ctx context.Context) error {
	for {
		st, err := s.Stats(ctx)
		if err != nil {
			return err
		}
		if st.TotalBytes <= s.maxBytes {
			return nil
		}

		var fingerprint, blobPath string
		err = s.db.QueryRowContext(ctx, `
			SELECT fingerprint, blob_path FROM cache_entries ORDER BY last_accessed_at ASC LIMIT 1
		`).Scan(&fingerprint, &blobPath)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.remove(ctx, fingerprint, blobPath); err != nil {
			return err
		}
	}
}

func (s *Store) remove(ctx context.Context, fingerprint, blobPath string) error {
	_ = os.Remove(blobPath)
	_, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE fingerprint = ?`, fingerprint)
	return err
}

// blobPath shards blobs into two-character subdirectories keyed by the
// fingerprint prefix, avoiding a single directory with very many entries.
func (s *Store) blobPath(fingerprint string) string {
	prefix := fingerprint
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.baseDir, "blobs", prefix, fingerprint+".bin")
}
