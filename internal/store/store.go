package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"cqb/internal/errors"
	"cqb/internal/logging"
)

// Store is a content-addressed persistent key/value store for computed
// tables. Keys are parameter fingerprints; values are opaque byte blobs,
// optionally zstd-compressed. An empty path disables the store: every
// operation becomes a no-op, which is what tests and one-shot runs want.
type Store struct {
	db       *sql.DB
	logger   *logging.Logger
	path     string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

const schema = `
CREATE TABLE IF NOT EXISTS results (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	compressed INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
`

// Open opens or creates the store database. An empty path yields a disabled
// store, not an error.
func Open(path string, compress bool, logger *logging.Logger) (*Store, error) {
	s := &Store{logger: logger, path: path, compress: compress}
	if path == "" {
		logger.Debug("result cache disabled", nil)
		return s, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.New(errors.Cache, "failed to create cache directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.New(errors.Cache, "failed to open cache database", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, errors.New(errors.Cache, "failed to set pragma", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.New(errors.Cache, "failed to initialize cache schema", err)
	}

	s.db = db

	if compress {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			db.Close()
			return nil, errors.New(errors.Cache, "failed to create zstd encoder", err)
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			db.Close()
			return nil, errors.New(errors.Cache, "failed to create zstd decoder", err)
		}
		s.enc = enc
		s.dec = dec
	}

	logger.Debug("result cache opened", map[string]interface{}{
		"path":     path,
		"compress": compress,
	})
	return s, nil
}

// Enabled reports whether the store is backed by a database
func (s *Store) Enabled() bool {
	return s.db != nil
}

// Get returns the value for a fingerprint key. A miss is (nil, false, nil),
// never an error.
func (s *Store) Get(key string) ([]byte, bool, error) {
	if s.db == nil {
		return nil, false, nil
	}

	var value []byte
	var compressed int
	err := s.db.QueryRow(
		"SELECT value, compressed FROM results WHERE key = ?", key,
	).Scan(&value, &compressed)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.New(errors.Cache, "cache lookup failed", err)
	}

	if compressed != 0 {
		if s.dec == nil {
			return nil, false, errors.Newf(errors.Cache, "entry %s is compressed but compression is disabled", key)
		}
		value, err = s.dec.DecodeAll(value, nil)
		if err != nil {
			return nil, false, errors.New(errors.Cache, "cache entry decompression failed", err)
		}
	}
	return value, true, nil
}

// Set stores a value under a fingerprint key. Writers racing on the same
// key are idempotent: identical fingerprints mean identical values, so
// last-writer-wins is safe.
func (s *Store) Set(key string, value []byte) error {
	if s.db == nil {
		return nil
	}

	compressed := 0
	if s.enc != nil {
		value = s.enc.EncodeAll(value, nil)
		compressed = 1
	}

	_, err := s.db.Exec(
		"INSERT OR REPLACE INTO results (key, value, compressed, created_at) VALUES (?, ?, ?, ?)",
		key, value, compressed, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return errors.New(errors.Cache, "cache write failed", err)
	}
	return nil
}

// Delete removes a key; deleting an absent key is not an error
func (s *Store) Delete(key string) error {
	if s.db == nil {
		return nil
	}
	if _, err := s.db.Exec("DELETE FROM results WHERE key = ?", key); err != nil {
		return errors.New(errors.Cache, "cache delete failed", err)
	}
	return nil
}

// Stats returns entry count and stored byte size
func (s *Store) Stats() (entries int, sizeBytes int64, err error) {
	if s.db == nil {
		return 0, 0, nil
	}
	err = s.db.QueryRow(
		"SELECT COUNT(*), COALESCE(SUM(LENGTH(value)), 0) FROM results",
	).Scan(&entries, &sizeBytes)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to get cache stats: %w", err)
	}
	return entries, sizeBytes, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	if s.enc != nil {
		s.enc.Close()
	}
	if s.dec != nil {
		s.dec.Close()
	}
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
