// Package store persists rule sources so an engine can be rebuilt after a
// restart or re-synced on a schedule.
//
// A source is the text of one rule file: one or more rules in the ruleset
// grammar. Sources are keyed by name and listed in the order they were
// first stored, which is the order their rules are registered.
package store

import (
	"errors"
	"time"
)

// Store persists named rule sources.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores a source under name.
	// Overwriting keeps the name's original position in List.
	Put(name string, source []byte) error

	// Get retrieves a source.
	// Returns ErrNotFound if name doesn't exist.
	Get(name string) ([]byte, error)

	// List returns every stored source's metadata, ordered by sequence.
	// Returns an empty slice (not error) if the store is empty.
	List() ([]Info, error)

	// Delete removes a source.
	// Returns nil if name doesn't exist.
	Delete(name string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Info provides metadata without loading the source.
type Info struct {
	Name     string
	Sequence int
	Updated  time.Time
	Size     int64
}

// Sentinel errors for store operations.
var (
	// ErrNotFound indicates a source doesn't exist.
	ErrNotFound = errors.New("rule source not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("rule store closed")

	// ErrEmptyName indicates a Put without a name.
	ErrEmptyName = errors.New("rule source name is empty")
)
