// Package orderedset provides an insertion-ordered set.
//
// Subscriber registries fan out in the order callbacks were registered, so a
// plain map is not enough.
package orderedset

// Set is an insertion-ordered set of comparable values.
// The zero value is ready to use. Set is not safe for concurrent use.
type Set[T comparable] struct {
	items []T
	index map[T]int
}

// New returns a set holding the given values in order.
func New[T comparable](values ...T) *Set[T] {
	s := &Set[T]{}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add appends v if it is not already present. Returns true if added.
func (s *Set[T]) Add(v T) bool {
	if s.index == nil {
		s.index = make(map[T]int)
	}
	if _, ok := s.index[v]; ok {
		return false
	}
	s.index[v] = len(s.items)
	s.items = append(s.items, v)
	return true
}

// Delete removes v, preserving the order of the remaining values.
func (s *Set[T]) Delete(v T) bool {
	i, ok := s.index[v]
	if !ok {
		return false
	}
	copy(s.items[i:], s.items[i+1:])
	var zero T
	s.items[len(s.items)-1] = zero
	s.items = s.items[:len(s.items)-1]
	delete(s.index, v)
	for j := i; j < len(s.items); j++ {
		s.index[s.items[j]] = j
	}
	return true
}

// Has reports whether v is in the set.
func (s *Set[T]) Has(v T) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[v]
	return ok
}

// Len returns the number of values.
func (s *Set[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// Values returns a copy of the values in insertion order.
// Callers may mutate the set while iterating the copy.
func (s *Set[T]) Values() []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Merge adds every value of other, in order.
func (s *Set[T]) Merge(other *Set[T]) {
	for _, v := range other.Values() {
		s.Add(v)
	}
}

// Clear removes all values.
func (s *Set[T]) Clear() {
	s.items = nil
	s.index = nil
}
