package registry

import (
	"slices"
	"sync"
	"sync/atomic"
)

// Entry is one key/value pair, used where insertion order matters.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// Snapshot is an immutable view of a registry at one version. Entries
// keep their insertion order. A Snapshot is safe for concurrent use and
// never changes after it is published.
type Snapshot[K comparable, V any] struct {
	version uint64
	keys    []K
	entries map[K]V
}

// Get returns the value for a key and whether it exists.
func (s *Snapshot[K, V]) Get(key K) (V, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// MustGet returns the value for a key, panicking if not found.
func (s *Snapshot[K, V]) MustGet(key K) V {
	v, ok := s.entries[key]
	if !ok {
		panic("registry: key not found")
	}
	return v
}

// Has returns true if the key exists in the snapshot.
func (s *Snapshot[K, V]) Has(key K) bool {
	_, ok := s.entries[key]
	return ok
}

// Keys returns all keys in insertion order.
func (s *Snapshot[K, V]) Keys() []K {
	return slices.Clone(s.keys)
}

// Len returns the number of entries.
func (s *Snapshot[K, V]) Len() int {
	return len(s.keys)
}

// Version returns the number of mutations that preceded this snapshot.
func (s *Snapshot[K, V]) Version() uint64 {
	return s.version
}

// Range calls fn for each entry in insertion order. If fn returns false,
// iteration stops.
func (s *Snapshot[K, V]) Range(fn func(K, V) bool) {
	for _, k := range s.keys {
		if !fn(k, s.entries[k]) {
			return
		}
	}
}

// Entries returns all entries in insertion order.
func (s *Snapshot[K, V]) Entries() []Entry[K, V] {
	out := make([]Entry[K, V], len(s.keys))
	for i, k := range s.keys {
		out[i] = Entry[K, V]{Key: k, Value: s.entries[k]}
	}
	return out
}

func (s *Snapshot[K, V]) clone() *Snapshot[K, V] {
	next := &Snapshot[K, V]{
		version: s.version + 1,
		keys:    slices.Clone(s.keys),
		entries: make(map[K]V, len(s.entries)+1),
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	return next
}

func (s *Snapshot[K, V]) set(key K, value V) {
	if _, ok := s.entries[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.entries[key] = value
}

// Registry is a thread-safe, insertion-ordered registry for values indexed
// by key.
//
// Reads go through the current Snapshot, which is loaded with a single
// atomic pointer read and never locks. Every write copies the current
// snapshot, applies the change and publishes the copy, so a reader that
// took a snapshot keeps a consistent view while writers proceed. Writers
// are serialized by a mutex.
type Registry[K comparable, V any] struct {
	mu      sync.Mutex
	current atomic.Pointer[Snapshot[K, V]]
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	r := &Registry[K, V]{}
	r.current.Store(&Snapshot[K, V]{entries: make(map[K]V)})
	return r
}

// Snapshot returns the current immutable view.
func (r *Registry[K, V]) Snapshot() *Snapshot[K, V] {
	return r.current.Load()
}

// update applies fn to a private copy of the current snapshot and
// publishes it if fn reports a change.
func (r *Registry[K, V]) update(fn func(next *Snapshot[K, V]) bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := r.current.Load().clone()
	if fn(next) {
		r.current.Store(next)
	}
}

// Register adds or updates a value. A new key is appended to the order;
// an existing key keeps its position.
func (r *Registry[K, V]) Register(key K, value V) {
	r.update(func(next *Snapshot[K, V]) bool {
		next.set(key, value)
		return true
	})
}

// Add registers value only if key is absent. It reports whether the
// value was added.
func (r *Registry[K, V]) Add(key K, value V) bool {
	added := false
	r.update(func(next *Snapshot[K, V]) bool {
		if next.Has(key) {
			return false
		}
		next.set(key, value)
		added = true
		return true
	})
	return added
}

// AddMany adds entries as one change only if none of their keys is
// present and no key repeats among them. On conflict nothing is added and
// the offending key is returned with false.
func (r *Registry[K, V]) AddMany(entries ...Entry[K, V]) (K, bool) {
	var conflict K
	ok := true
	r.update(func(next *Snapshot[K, V]) bool {
		for _, e := range entries {
			if next.Has(e.Key) {
				conflict, ok = e.Key, false
				return false
			}
			next.set(e.Key, e.Value)
		}
		return len(entries) > 0
	})
	return conflict, ok
}

// RegisterMany adds or updates several entries as one change, in order.
func (r *Registry[K, V]) RegisterMany(entries ...Entry[K, V]) {
	if len(entries) == 0 {
		return
	}
	r.update(func(next *Snapshot[K, V]) bool {
		for _, e := range entries {
			next.set(e.Key, e.Value)
		}
		return true
	})
}

// Reset replaces every entry with entries, in order, as one change.
func (r *Registry[K, V]) Reset(entries ...Entry[K, V]) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := &Snapshot[K, V]{
		version: r.current.Load().version + 1,
		entries: make(map[K]V, len(entries)),
	}
	for _, e := range entries {
		next.set(e.Key, e.Value)
	}
	r.current.Store(next)
}

// Delete removes a key. It reports whether the key was present.
func (r *Registry[K, V]) Delete(key K) bool {
	deleted := false
	r.update(func(next *Snapshot[K, V]) bool {
		if !next.Has(key) {
			return false
		}
		delete(next.entries, key)
		next.keys = slices.DeleteFunc(next.keys, func(k K) bool { return k == key })
		deleted = true
		return true
	})
	return deleted
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	return r.Snapshot().Get(key)
}

// MustGet returns the value for a key, panicking if not found.
func (r *Registry[K, V]) MustGet(key K) V {
	return r.Snapshot().MustGet(key)
}

// Has returns true if the key exists in the registry.
func (r *Registry[K, V]) Has(key K) bool {
	return r.Snapshot().Has(key)
}

// Keys returns all keys in insertion order.
func (r *Registry[K, V]) Keys() []K {
	return r.Snapshot().Keys()
}

// Len returns the number of entries in the registry.
func (r *Registry[K, V]) Len() int {
	return r.Snapshot().Len()
}

// Range iterates over the current snapshot in insertion order. It is safe
// to call Register or Delete during iteration; the iteration is not
// affected.
func (r *Registry[K, V]) Range(fn func(K, V) bool) {
	r.Snapshot().Range(fn)
}

// GetOrCreate returns the value for a key, creating it with the factory
// function if it doesn't exist. The factory is called at most once per
// key, even under concurrent access.
func (r *Registry[K, V]) GetOrCreate(key K, factory func() V) V {
	if v, ok := r.Get(key); ok {
		return v
	}

	var out V
	r.update(func(next *Snapshot[K, V]) bool {
		if v, ok := next.Get(key); ok {
			out = v
			return false
		}
		out = factory()
		next.set(key, out)
		return true
	})
	return out
}
