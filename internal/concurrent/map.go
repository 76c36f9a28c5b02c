// Package concurrent provides the concurrent hashmap both the session
// registry and Playback keep their hot-path lookups in: lock-free reads,
// fine-grained writes, no global lock. A thin generic wrapper over
// sync.Map is all that contract needs.
package concurrent

import "sync"

// Map is a type-safe wrapper around sync.Map.
type Map[K comparable, V any] struct {
	m sync.Map
}

// Load returns the value stored for key, if any.
func (m *Map[K, V]) Load(key K) (V, bool) {
	v, ok := m.m.Load(key)
	if !ok {
		var zero V
		return zero, false
	}
	return v.(V), true
}

// Store sets the value for key, overwriting any existing entry.
func (m *Map[K, V]) Store(key K, value V) {
	m.m.Store(key, value)
}

// LoadOrStore returns the existing value for key if present; otherwise it
// stores and returns value. loaded reports whether the value came from an
// existing entry.
func (m *Map[K, V]) LoadOrStore(key K, value V) (actual V, loaded bool) {
	v, loaded := m.m.LoadOrStore(key, value)
	return v.(V), loaded
}

// Delete removes key, if present.
func (m *Map[K, V]) Delete(key K) {
	m.m.Delete(key)
}

// Range calls fn for each entry until fn returns false. The iteration
// order is unspecified, matching sync.Map.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	m.m.Range(func(k, v any) bool {
		return fn(k.(K), v.(V))
	})
}

// Len reports the number of entries currently stored. O(n).
func (m *Map[K, V]) Len() int {
	n := 0
	m.Range(func(K, V) bool {
		n++
		return true
	})
	return n
}
