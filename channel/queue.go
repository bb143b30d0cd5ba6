// Copyright (c) 2024, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package channel

import (
	"sync"

	"github.com/marko-gacesa/udpsync/sequence"
)

// Queue is a bounded queue that never blocks the producer. When full, the oldest element is dropped.
// Producers call Push from any goroutine. The consumer takes everything at once with Drain.
type Queue[T any] struct {
	mx      sync.Mutex
	items   *sequence.Recent[T]
	dropped int
}

func NewQueue[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		items: sequence.NewRecent[T](capacity),
	}
}

// Push adds the element. It returns false if an older element had to be dropped to make room.
func (q *Queue[T]) Push(v T) bool {
	q.mx.Lock()
	_, evicted := q.items.Push(v)
	if evicted {
		q.dropped++
	}
	q.mx.Unlock()

	return !evicted
}

// Drain appends all queued elements to dst, oldest first, and empties the queue.
func (q *Queue[T]) Drain(dst []T) []T {
	q.mx.Lock()
	defer q.mx.Unlock()

	q.items.Iterate(func(v T) bool {
		dst = append(dst, v)
		return true
	})
	q.items.Clear()

	return dst
}

func (q *Queue[T]) Len() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.items.Len()
}

// Dropped returns the total number of elements dropped because the queue was full.
func (q *Queue[T]) Dropped() int {
	q.mx.Lock()
	defer q.mx.Unlock()
	return q.dropped
}
