// Package memory provides the keyed recall store that backs an NPC's general
// and emotional memories.
package memory

import (
	"maps"
	"slices"
)

// Store maps a string key to a remembered value. The last write for a key wins.
// A Store is owned by a single agent and is not safe for concurrent use.
type Store[V any] struct {
	entries map[string]V
}

// New returns an empty store.
func New[V any]() *Store[V] {
	return &Store[V]{entries: make(map[string]V)}
}

// Record stores v under key, replacing any previous value.
func (s *Store[V]) Record(key string, v V) {
	s.entries[key] = v
}

// Recall returns the value stored under key. ok is false when the key was never recorded.
func (s *Store[V]) Recall(key string) (V, bool) {
	v, ok := s.entries[key]
	return v, ok
}

// Keys returns the recorded keys in sorted order.
func (s *Store[V]) Keys() []string {
	return slices.Sorted(maps.Keys(s.entries))
}

func (s *Store[V]) Len() int {
	return len(s.entries)
}

// Entries returns a copy of the stored values.
func (s *Store[V]) Entries() map[string]V {
	return maps.Clone(s.entries)
}

// Load replaces the store contents with a copy of entries.
func (s *Store[V]) Load(entries map[string]V) {
	s.entries = make(map[string]V, len(entries))
	maps.Copy(s.entries, entries)
}
