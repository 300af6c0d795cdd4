package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// SQLiteStore persists sources to SQLite.
// It is suitable for single-process production use.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

// NewSQLiteStore opens or creates a SQLite rule store.
// The path should be a file path (e.g., "./rules.db") or ":memory:" for testing.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS rule_sources (
			name TEXT PRIMARY KEY,
			sequence INTEGER NOT NULL,
			updated TEXT NOT NULL,
			source BLOB NOT NULL
		)
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(name string, source []byte) error {
	if name == "" {
		return ErrEmptyName
	}
	if source == nil {
		source = []byte{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	// A new name takes max + 1; an update keeps its sequence.
	_, err := s.db.Exec(`
		INSERT INTO rule_sources (name, sequence, updated, source)
		VALUES (
			?,
			COALESCE((SELECT MAX(sequence) FROM rule_sources), 0) + 1,
			?, ?
		)
		ON CONFLICT(name) DO UPDATE SET
			updated = excluded.updated,
			source = excluded.source
	`, name, time.Now().UTC().Format(time.RFC3339Nano), source)
	if err != nil {
		return fmt.Errorf("put rule source: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *SQLiteStore) Get(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var source []byte
	err := s.db.QueryRow(`
		SELECT source FROM rule_sources WHERE name = ?
	`, name).Scan(&source)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get rule source: %w", err)
	}
	return source, nil
}

// List implements Store.
func (s *SQLiteStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT name, sequence, updated, LENGTH(source)
		FROM rule_sources
		ORDER BY sequence
	`)
	if err != nil {
		return nil, fmt.Errorf("list rule sources: %w", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var info Info
		var updated string
		if err := rows.Scan(&info.Name, &info.Sequence, &updated, &info.Size); err != nil {
			return nil, fmt.Errorf("scan rule source info: %w", err)
		}
		info.Updated, _ = time.Parse(time.RFC3339Nano, updated)
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rule sources: %w", err)
	}
	return infos, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, err := s.db.Exec(`DELETE FROM rule_sources WHERE name = ?`, name); err != nil {
		return fmt.Errorf("delete rule source: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
