// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sequence

import (
	"reflect"
	"testing"
)

type seqOp struct {
	val int
	op  op
}

type op int

const (
	opPush op = iota
	opRemove
	opPop
	opClear
)

func TestRecent(t *testing.T) {
	tests := []struct {
		name       string
		capacity   int
		seqOps     []seqOp
		expect     []int
		expectSize int
	}{
		{
			name:       "empty",
			capacity:   4,
			seqOps:     []seqOp{},
			expect:     []int{},
			expectSize: 0,
		},
		{
			name:     "push-cap-1",
			capacity: 4,
			seqOps: []seqOp{
				{val: 1, op: opPush},
				{val: 2, op: opPush},
				{val: 3, op: opPush},
			},
			expect:     []int{1, 2, 3},
			expectSize: 3,
		},
		{
			name:     "push-cap+2",
			capacity: 4,
			seqOps: []seqOp{
				{val: 1, op: opPush},
				{val: 2, op: opPush},
				{val: 3, op: opPush},
				{val: 4, op: opPush},
				{val: 5, op: opPush},
				{val: 6, op: opPush},
			},
			expect:     []int{3, 4, 5, 6},
			expectSize: 4,
		},
		{
			name:     "pop",
			capacity: 3,
			seqOps: []seqOp{
				{val: 1, op: opPush},
				{val: 2, op: opPush},
				{op: opPop},
				{val: 3, op: opPush},
				{val: 4, op: opPush},
			},
			expect:     []int{2, 3, 4},
			expectSize: 3,
		},
		{
			name:     "remove-up-to",
			capacity: 4,
			seqOps: []seqOp{
				{val: 1, op: opPush},
				{val: 2, op: opPush},
				{val: 3, op: opPush},
				{val: 4, op: opPush},
				{val: 5, op: opPush},
				{val: 3, op: opRemove},
			},
			expect:     []int{4, 5},
			expectSize: 2,
		},
		{
			name:     "clear-push",
			capacity: 2,
			seqOps: []seqOp{
				{val: 1, op: opPush},
				{val: 2, op: opPush},
				{op: opClear},
				{val: 3, op: opPush},
			},
			expect:     []int{3},
			expectSize: 1,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewRecent[int](test.capacity)
			for _, so := range test.seqOps {
				switch so.op {
				case opPush:
					r.Push(so.val)
				case opRemove:
					r.RemoveFn(func(v int) bool { return v <= so.val })
				case opPop:
					r.Pop()
				case opClear:
					r.Clear()
				}
			}

			if got := r.Slice(); !reflect.DeepEqual(test.expect, got) {
				t.Errorf("expected=%v got=%v", test.expect, got)
			}
			if r.Len() != test.expectSize {
				t.Errorf("size mismatch: expected=%d got=%d", test.expectSize, r.Len())
			}
		})
	}
}

func TestRecent_Evicted(t *testing.T) {
	r := NewRecent[int](2)
	if _, ok := r.Push(1); ok {
		t.Errorf("nothing should be evicted")
	}
	r.Push(2)
	evicted, ok := r.Push(3)
	if !ok || evicted != 1 {
		t.Errorf("expected eviction of 1, got %d (ok=%t)", evicted, ok)
	}
	if last, _ := r.Last(); last != 3 {
		t.Errorf("expected last 3, got %d", last)
	}
	if first, _ := r.Peek(); first != 2 {
		t.Errorf("expected first 2, got %d", first)
	}
}
