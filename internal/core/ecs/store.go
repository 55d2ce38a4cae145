package ecs

import "github.com/kamstrup/intmap"

// Store is a dense typed component store: values live in one contiguous
// slice, an intmap resolves entity ids to slots. Pointers returned by Get stay
// valid until the next Insert or Remove on the same store.
type Store[T any] struct {
	ids    []EntityID
	values []T
	index  *intmap.Map[EntityID, int]
}

func NewStore[T any](capacity int) *Store[T] {
	return &Store[T]{
		ids:    make([]EntityID, 0, capacity),
		values: make([]T, 0, capacity),
		index:  intmap.New[EntityID, int](capacity),
	}
}

// Insert sets the component for id, replacing any previous value.
func (s *Store[T]) Insert(id EntityID, value T) {
	if slot, ok := s.index.Get(id); ok {
		s.values[slot] = value
		return
	}
	s.index.Put(id, len(s.values))
	s.ids = append(s.ids, id)
	s.values = append(s.values, value)
}

func (s *Store[T]) Get(id EntityID) (*T, bool) {
	slot, ok := s.index.Get(id)
	if !ok {
		return nil, false
	}
	return &s.values[slot], true
}

func (s *Store[T]) Has(id EntityID) bool {
	return s.index.Has(id)
}

// Remove deletes the component for id by moving the last slot into its place.
func (s *Store[T]) Remove(id EntityID) bool {
	slot, ok := s.index.Get(id)
	if !ok {
		return false
	}
	last := len(s.values) - 1
	if slot != last {
		s.values[slot] = s.values[last]
		s.ids[slot] = s.ids[last]
		s.index.Put(s.ids[slot], slot)
	}
	var zero T
	s.values[last] = zero
	s.values = s.values[:last]
	s.ids = s.ids[:last]
	s.index.Del(id)
	return true
}

func (s *Store[T]) Len() int {
	return len(s.values)
}
