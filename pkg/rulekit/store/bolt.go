package store

import (
	"encoding/json"
	"fmt"
	"slices"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var sourcesBucket = []byte("rule_sources")

// boltRecord is the stored value for one source.
type boltRecord struct {
	Sequence int       `json:"sequence"`
	Updated  time.Time `json:"updated"`
	Source   []byte    `json:"source"`
}

// BoltStore persists sources to a bbolt file.
// bbolt holds an exclusive file lock, so one process owns the file.
type BoltStore struct {
	db     *bolt.DB
	mu     sync.RWMutex
	closed bool
}

// NewBoltStore opens or creates a bbolt rule store at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(sourcesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// Put implements Store.
func (s *BoltStore) Put(name string, source []byte) error {
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(sourcesBucket)
		key := []byte(name)

		rec := boltRecord{Updated: time.Now().UTC(), Source: slices.Clone(source)}
		if old := b.Get(key); old != nil {
			var prev boltRecord
			if err := json.Unmarshal(old, &prev); err != nil {
				return fmt.Errorf("decode %s: %w", name, err)
			}
			rec.Sequence = prev.Sequence
		} else {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			rec.Sequence = int(seq)
		}

		js, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Put(key, js)
	})
	if err != nil {
		return fmt.Errorf("put rule source: %w", err)
	}
	return nil
}

// Get implements Store.
func (s *BoltStore) Get(name string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var rec boltRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(sourcesBucket).Get([]byte(name))
		if bs == nil {
			return nil
		}
		found = true
		return json.Unmarshal(bs, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("get rule source: %w", err)
	}
	if !found {
		return nil, ErrNotFound
	}
	if rec.Source == nil {
		rec.Source = []byte{}
	}
	return rec.Source, nil
}

// List implements Store.
func (s *BoltStore) List() ([]Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var infos []Info
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).ForEach(func(k, v []byte) error {
			var rec boltRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %s: %w", k, err)
			}
			infos = append(infos, Info{
				Name:     string(k),
				Sequence: rec.Sequence,
				Updated:  rec.Updated,
				Size:     int64(len(rec.Source)),
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list rule sources: %w", err)
	}

	// Keys iterate in byte order; List promises sequence order.
	slices.SortFunc(infos, func(a, b Info) int {
		return a.Sequence - b.Sequence
	})
	return infos, nil
}

// Delete implements Store.
func (s *BoltStore) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(sourcesBucket).Delete([]byte(name))
	})
	if err != nil {
		return fmt.Errorf("delete rule source: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *BoltStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	return s.db.Close()
}
