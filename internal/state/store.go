// Package state persists incremental-analysis state in SQLite: the
// per-file content-hash table that drives unchanged-file skipping, and a
// lightweight run log.
package state

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps the SQLite state database. Only the orchestrating goroutine
// writes to it; workers return data, they do not touch state directly.
type Store struct {
	db   *sql.DB
	path string
}

// New creates a store instance; call Open before use.
func New() *Store {
	return &Store{}
}

// Open opens the SQLite database. Use ":memory:" for tests.
func (s *Store) Open(path string) error {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening state database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("pinging state database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates tables if they do not exist.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return errors.New("state database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("initializing state schema: %w", err)
	}
	return nil
}

// =============================================================================
// Content hashes
// =============================================================================

// GetContentHash returns the stored hash for a file path, or "" when the
// file has not been seen.
func (s *Store) GetContentHash(filePath string) (string, error) {
	if s.db == nil {
		return "", errors.New("state database not opened")
	}
	var hash string
	err := s.db.QueryRow(
		`SELECT content_hash FROM content_hashes WHERE file_path = ?`, filePath,
	).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading content hash: %w", err)
	}
	return hash, nil
}

// SetContentHash stores the hash for a file path.
func (s *Store) SetContentHash(filePath, hash string) error {
	if s.db == nil {
		return errors.New("state database not opened")
	}
	_, err := s.db.Exec(`
		INSERT INTO content_hashes (file_path, content_hash, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		filePath, hash)
	if err != nil {
		return fmt.Errorf("storing content hash: %w", err)
	}
	return nil
}

// AllContentHashes returns the whole previous-run hash table.
func (s *Store) AllContentHashes() (map[string]string, error) {
	if s.db == nil {
		return nil, errors.New("state database not opened")
	}
	rows, err := s.db.Query(`SELECT file_path, content_hash FROM content_hashes`)
	if err != nil {
		return nil, fmt.Errorf("listing content hashes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		out[path] = hash
	}
	return out, rows.Err()
}

// DeleteContentHash removes the hash for a file path.
func (s *Store) DeleteContentHash(filePath string) error {
	if s.db == nil {
		return errors.New("state database not opened")
	}
	_, err := s.db.Exec(`DELETE FROM content_hashes WHERE file_path = ?`, filePath)
	return err
}

// =============================================================================
// Runs
// =============================================================================

// Run is one recorded analysis run.
type Run struct {
	ID          string
	Archetype   string
	StartedAt   time.Time
	CompletedAt time.Time
	Files       int
	CacheHits   int
	Issues      int
}

// StartRun records the beginning of an analysis run and returns its id.
func (s *Store) StartRun(archetype string) (string, error) {
	if s.db == nil {
		return "", errors.New("state database not opened")
	}
	id := uuid.NewString()
	_, err := s.db.Exec(
		`INSERT INTO runs (id, archetype, started_at) VALUES (?, ?, ?)`,
		id, archetype, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", fmt.Errorf("recording run start: %w", err)
	}
	return id, nil
}

// CompleteRun records the outcome of a run.
func (s *Store) CompleteRun(id string, files, cacheHits, issues int) error {
	if s.db == nil {
		return errors.New("state database not opened")
	}
	_, err := s.db.Exec(`
		UPDATE runs SET completed_at = ?, files = ?, cache_hits = ?, issues = ?
		WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), files, cacheHits, issues, id)
	return err
}
