// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sequence

// Recent is a bounded FIFO ring. When full, pushing a new element evicts the oldest one.
type Recent[T any] struct {
	// head points to the most recent element (entries[head] is the most recent)
	head int

	// size is number of elements it currently contains
	size int

	entries []T
}

func NewRecent[T any](capacity int) *Recent[T] {
	if capacity <= 0 {
		panic("recent: capacity must be positive")
	}
	return &Recent[T]{
		head:    -1,
		entries: make([]T, capacity),
	}
}

// Push adds the element as the most recent one. It returns the evicted element, if any.
func (r *Recent[T]) Push(v T) (evicted T, ok bool) {
	if r.size == len(r.entries) {
		evicted = r.entries[r.tail()]
		ok = true
	} else {
		r.size++
	}

	r.head++
	if r.head == len(r.entries) {
		r.head = 0
	}

	r.entries[r.head] = v

	return
}

// Pop removes and returns the oldest element.
func (r *Recent[T]) Pop() (v T, found bool) {
	if r.size == 0 {
		return
	}

	tail := r.tail()
	v = r.entries[tail]
	found = true

	var zero T
	r.entries[tail] = zero
	r.size--

	return
}

// Peek returns the oldest element without removing it.
func (r *Recent[T]) Peek() (v T, found bool) {
	if r.size == 0 {
		return
	}
	return r.entries[r.tail()], true
}

// Last returns the most recent element.
func (r *Recent[T]) Last() (v T, found bool) {
	if r.size == 0 {
		return
	}
	return r.entries[r.head], true
}

// RemoveFn removes all elements for which shouldRemove returns true, keeping the order of the rest.
func (r *Recent[T]) RemoveFn(shouldRemove func(T) bool) int {
	kept := make([]T, 0, r.size)
	r.Iterate(func(v T) bool {
		if !shouldRemove(v) {
			kept = append(kept, v)
		}
		return true
	})

	removed := r.size - len(kept)
	if removed == 0 {
		return 0
	}

	r.Clear()
	for i := range kept {
		r.Push(kept[i])
	}

	return removed
}

func (r *Recent[T]) Len() int {
	return r.size
}

func (r *Recent[T]) Cap() int {
	return len(r.entries)
}

// Iterate calls fn for every element, the oldest first, until fn returns false.
func (r *Recent[T]) Iterate(fn func(T) bool) {
	for n, idx := r.size, r.tail(); n > 0; n-- {
		if !fn(r.entries[idx]) {
			return
		}

		idx++
		if idx == len(r.entries) {
			idx = 0
		}
	}
}

// Slice returns all elements, the oldest first.
func (r *Recent[T]) Slice() []T {
	s := make([]T, 0, r.size)
	r.Iterate(func(v T) bool {
		s = append(s, v)
		return true
	})
	return s
}

func (r *Recent[T]) Clear() {
	clear(r.entries)
	r.size = 0
	r.head = -1
}

func (r *Recent[T]) tail() int {
	tail := r.head - r.size + 1
	if tail < 0 {
		tail += len(r.entries)
	}
	return tail
}
