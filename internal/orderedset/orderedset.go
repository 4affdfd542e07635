// Package orderedset provides an insertion-ordered, key-deduplicating map.
package orderedset

// Set maps keys to values and remembers the order in which keys were first
// inserted. Re-setting an existing key updates its value without moving it.
//
// The zero value is not usable; create sets with New.
type Set[K comparable, V any] struct {
	order  []K
	values map[K]V
}

// New creates an empty set.
func New[K comparable, V any]() *Set[K, V] {
	return &Set[K, V]{
		values: make(map[K]V),
	}
}

// Set inserts key at the end of the order if absent, otherwise updates its value in place.
func (s *Set[K, V]) Set(key K, value V) {
	if _, exists := s.values[key]; !exists {
		s.order = append(s.order, key)
	}
	s.values[key] = value
}

// Get returns the value stored for key.
func (s *Set[K, V]) Get(key K) (V, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is present.
func (s *Set[K, V]) Has(key K) bool {
	_, ok := s.values[key]
	return ok
}

// Len returns the number of keys.
func (s *Set[K, V]) Len() int {
	return len(s.order)
}

// Keys returns a snapshot of the keys in insertion order.
func (s *Set[K, V]) Keys() []K {
	keys := make([]K, len(s.order))
	copy(keys, s.order)
	return keys
}

// Values returns a snapshot of the values in key insertion order.
func (s *Set[K, V]) Values() []V {
	values := make([]V, len(s.order))
	for i, k := range s.order {
		values[i] = s.values[k]
	}
	return values
}

// FromKeys builds a set whose values equal their keys, dropping duplicates.
func FromKeys[K comparable](keys ...K) *Set[K, K] {
	s := New[K, K]()
	for _, k := range keys {
		s.Set(k, k)
	}
	return s
}
