package store

import (
	"slices"
	"sync"
	"time"
)

// MemoryStore keeps sources in memory. Data is lost when the process exits.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]storedSource
	seq    int
	closed bool
}

// storedSource holds a source with metadata for List().
type storedSource struct {
	source   []byte
	sequence int
	updated  time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]storedSource),
	}
}

// Put implements Store.
func (m *MemoryStore) Put(name string, source []byte) error {
	if name == "" {
		return ErrEmptyName
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	seq := m.data[name].sequence
	if seq == 0 {
		m.seq++
		seq = m.seq
	}

	m.data[name] = storedSource{
		source:   slices.Clone(source),
		sequence: seq,
		updated:  time.Now().UTC(),
	}
	return nil
}

// Get implements Store.
func (m *MemoryStore) Get(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	s, ok := m.data[name]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(s.source), nil
}

// List implements Store.
func (m *MemoryStore) List() ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	infos := make([]Info, 0, len(m.data))
	for name, s := range m.data {
		infos = append(infos, Info{
			Name:     name,
			Sequence: s.sequence,
			Updated:  s.updated,
			Size:     int64(len(s.source)),
		})
	}
	slices.SortFunc(infos, func(a, b Info) int {
		return a.Sequence - b.Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, name)
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored sources.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
