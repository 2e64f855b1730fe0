// Package handles provides thread-safe handle tables for Go values that must
// be named by an integer: values referenced from native callbacks (a uintptr
// stored in C memory) and identities written into the dispatch pipe.
//
// Go pointers cannot be stored in C memory, and a pipe record cannot carry a
// pointer either. A value is registered and the returned id travels instead.
// Ids come from a monotonically increasing counter and are never reused, so a
// stale id resolves to nothing rather than to an unrelated value.
package handles

import (
	"sync"
)

// Table maps ids to values of type T.
// The zero value is ready to use. Thread-safe.
type Table[T any] struct {
	mu     sync.RWMutex
	values map[uint64]T
	nextID uint64
}

// Register stores v and returns its id. Ids are never zero.
func (t *Table[T]) Register(v T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.values == nil {
		t.values = make(map[uint64]T)
	}
	t.nextID++
	id := t.nextID
	t.values[id] = v
	return id
}

// Lookup returns the value registered under id.
func (t *Table[T]) Lookup(id uint64) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[id]
	return v, ok
}

// Unregister removes id and returns the value it held.
func (t *Table[T]) Unregister(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v, ok := t.values[id]
	if ok {
		delete(t.values, id)
	}
	return v, ok
}

// Len returns the number of registered values.
// Useful for debugging and testing leaks.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.values)
}

var global Table[any]

// Register stores a Go object in the process-wide table and returns a handle
// that can be stored in C memory (as uintptr or gpointer).
// The object remains reachable until Unregister is called.
func Register(v any) uintptr {
	return uintptr(global.Register(v))
}

// Lookup retrieves a Go object by its handle.
// Returns nil if the handle is not registered.
func Lookup(h uintptr) any {
	v, _ := global.Lookup(uint64(h))
	return v
}

// Unregister removes a handle and returns the object it held, if any.
func Unregister(h uintptr) any {
	v, _ := global.Unregister(uint64(h))
	return v
}

// Count returns the number of currently registered process-wide handles.
func Count() int {
	return global.Len()
}
