// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package channel

import (
	"reflect"
	"slices"
	"sync"
	"testing"
)

func TestQueue(t *testing.T) {
	q := NewQueue[int](3)

	for i := 1; i <= 5; i++ {
		q.Push(i)
	}

	if got := q.Drain(nil); !reflect.DeepEqual([]int{3, 4, 5}, got) {
		t.Errorf("expected the newest three, got %v", got)
	}
	if q.Dropped() != 2 {
		t.Errorf("expected 2 dropped, got %d", q.Dropped())
	}
	if q.Len() != 0 {
		t.Errorf("queue should be empty after drain")
	}
}

func TestQueue_Concurrent(t *testing.T) {
	const (
		producers = 4
		count     = 100
	)

	q := NewQueue[int](producers * count)

	wg := sync.WaitGroup{}
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range count {
				q.Push(p*count + i)
			}
		}()
	}
	wg.Wait()

	got := q.Drain(nil)
	slices.Sort(got)

	if len(got) != producers*count {
		t.Fatalf("expected %d elements, got %d", producers*count, len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("missing element %d", i)
		}
	}
}
