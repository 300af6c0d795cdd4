package store_test

import (
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/randalmurphal/rulekit/pkg/rulekit/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStores_Persistence(t *testing.T) {
	tests := []struct {
		name string
		open func(path string) (store.Store, error)
	}{
		{"SQLiteStore", func(path string) (store.Store, error) { return store.NewSQLiteStore(path) }},
		{"BoltStore", func(path string) (store.Store, error) { return store.NewBoltStore(path) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules.db")

			s1, err := tt.open(path)
			require.NoError(t, err)
			require.NoError(t, s1.Put("b.rule", []byte("persistent")))
			require.NoError(t, s1.Put("a.rule", []byte("second")))
			require.NoError(t, s1.Close())

			s2, err := tt.open(path)
			require.NoError(t, err)
			defer s2.Close()

			data, err := s2.Get("b.rule")
			require.NoError(t, err)
			assert.Equal(t, []byte("persistent"), data)

			// Sequence survives reopening, and new names go after it.
			require.NoError(t, s2.Put("c.rule", []byte("third")))
			infos, err := s2.List()
			require.NoError(t, err)
			require.Len(t, infos, 3)
			assert.Equal(t, []string{"b.rule", "a.rule", "c.rule"},
				[]string{infos[0].Name, infos[1].Name, infos[2].Name})
		})
	}
}

func TestFileStores_InvalidPath(t *testing.T) {
	_, err := store.NewSQLiteStore("/nonexistent/path/rules.sqlite")
	assert.Error(t, err)

	_, err = store.NewBoltStore("/nonexistent/path/rules.bolt")
	assert.Error(t, err)
}

func TestFileStores_CloseIdempotent(t *testing.T) {
	sq, err := store.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	assert.NoError(t, sq.Close())
	assert.NoError(t, sq.Close())

	bs, err := store.NewBoltStore(filepath.Join(t.TempDir(), "rules.bolt"))
	require.NoError(t, err)
	assert.NoError(t, bs.Close())
	assert.NoError(t, bs.Close())
}

func TestStores_Concurrent(t *testing.T) {
	factories := map[string]func(t *testing.T) store.Store{
		"MemoryStore": func(*testing.T) store.Store { return store.NewMemoryStore() },
		"SQLiteStore": func(t *testing.T) store.Store {
			s, err := store.NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
		"BoltStore": func(t *testing.T) store.Store {
			s, err := store.NewBoltStore(filepath.Join(t.TempDir(), "rules.bolt"))
			require.NoError(t, err)
			return s
		},
	}

	for name, factory := range factories {
		t.Run(name, func(t *testing.T) {
			s := factory(t)
			defer s.Close()

			const numGoroutines = 10
			const numOps = 10

			var wg sync.WaitGroup
			for g := 0; g < numGoroutines; g++ {
				wg.Add(1)
				go func(g int) {
					defer wg.Done()
					for i := 0; i < numOps; i++ {
						key := fmt.Sprintf("g%d-%d.rule", g, i)
						assert.NoError(t, s.Put(key, []byte(key)))
						data, err := s.Get(key)
						assert.NoError(t, err)
						assert.Equal(t, []byte(key), data)
					}
				}(g)
			}
			wg.Wait()

			infos, err := s.List()
			require.NoError(t, err)
			assert.Len(t, infos, numGoroutines*numOps)
		})
	}
}

func TestMemoryStore_Len(t *testing.T) {
	s := store.NewMemoryStore()
	assert.Equal(t, 0, s.Len())

	require.NoError(t, s.Put("a.rule", []byte("a")))
	require.NoError(t, s.Put("b.rule", []byte("b")))
	require.NoError(t, s.Put("a.rule", []byte("a2")))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete("a.rule"))
	assert.Equal(t, 1, s.Len())
}
