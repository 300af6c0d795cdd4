// Package registry provides a generic thread-safe registry for values indexed by key.
//
// Registry keeps entries in insertion order and publishes every change as a
// new immutable Snapshot behind an atomic pointer. Reads never lock, and a
// caller holding a Snapshot keeps a stable view while writers continue.
//
// # Basic Usage
//
// Create a registry and register values:
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	r.Register("two", 2)
//
//	value, ok := r.Get("one")
//	if ok {
//	    fmt.Println(value) // Output: 1
//	}
//
// # Snapshots
//
// Take a snapshot once and evaluate against it, so that a concurrent
// update cannot change the view halfway through:
//
//	fns := registry.New[string, expr.Function]()
//	fns.Register("abs", absFunc)
//
//	snap := fns.Snapshot()          // satisfies expr.Functions
//	v, err := expr.Value(node, snap, input)
//
// # Ordering
//
// Keys, Range and Entries return entries in the order they were first
// registered. Re-registering a key keeps its position; Delete removes it.
// Reset replaces all entries in one step.
//
// # Lazy Initialization
//
// Use GetOrCreate for thread-safe lazy initialization:
//
//	pools := registry.New[string, *Pool]()
//	pool := pools.GetOrCreate("users_db", func() *Pool {
//	    return NewPool("users_db")
//	})
//
// GetOrCreate is atomic - the factory function is called at most once per key,
// even under concurrent access.
package registry
