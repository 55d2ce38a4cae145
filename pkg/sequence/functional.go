package sequence

import (
	"iter"
	"slices"
)

// Iterator is a generic, chainable iterator over an iter.Seq. Every method
// that returns an Iterator is lazy, and iterating the same Iterator twice
// replays the underlying sequence.
type Iterator[T any] struct {
	seq iter.Seq[T]
}

// From creates a new Iterator from a slice of T.
func From[T any](data []T) *Iterator[T] {
	return &Iterator[T]{seq: slices.Values(data)}
}

// FromSeq wraps an existing sequence.
func FromSeq[T any](seq iter.Seq[T]) *Iterator[T] {
	return &Iterator[T]{seq: seq}
}

// Seq returns the underlying sequence function for range loops.
func (i *Iterator[T]) Seq() iter.Seq[T] {
	return i.seq
}

// Pull converts the iterator into a pull-style next/stop pair.
func (i *Iterator[T]) Pull() (next func() (T, bool), stop func()) {
	return iter.Pull(i.seq)
}

// Collect exhausts the iterator and returns a slice of all elements.
func (i *Iterator[T]) Collect() []T {
	return slices.Collect(i.seq)
}

// Filter returns a new Iterator yielding only elements matching pred.
func (i *Iterator[T]) Filter(pred func(T) bool) *Iterator[T] {
	return &Iterator[T]{
		seq: func(yield func(T) bool) {
			for v := range i.seq {
				if pred(v) && !yield(v) {
					return
				}
			}
		},
	}
}

// Count exhausts the iterator and returns the number of elements.
func (i *Iterator[T]) Count() int {
	n := 0
	for range i.seq {
		n++
	}
	return n
}
