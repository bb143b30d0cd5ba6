// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sim

import (
	"errors"
	"fmt"

	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

var (
	ErrDivergence         = errors.New("simulation diverged")
	ErrNotEnoughHistory   = errors.New("not enough history")
	ErrInvalidVerifyDepth = errors.New("invalid verify depth")
)

// DivergenceError reports the first frame whose re-simulated state differs from the recorded one.
type DivergenceError struct {
	Frame    uint32
	Expected uint32
	Actual   uint32
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("simulation diverged at frame %d: checksum expected=%08x actual=%08x",
		e.Frame, e.Expected, e.Actual)
}

func (e *DivergenceError) Unwrap() error {
	return ErrDivergence
}

// History gives access to recorded snapshots and inputs.
type History interface {
	Snapshot(frame uint32) (*snapshot.Snapshot, bool)
	Inputs(frame uint32) ([]Input, bool)
}

type streamHistory struct {
	stream *snapshot.Stream
	log    *Log
}

func (h streamHistory) Snapshot(frame uint32) (*snapshot.Snapshot, bool) { return h.stream.Get(frame) }
func (h streamHistory) Inputs(frame uint32) ([]Input, bool)             { return h.log.Get(frame) }

// StreamHistory combines a snapshot stream with an input log.
func StreamHistory(stream *snapshot.Stream, log *Log) History {
	return streamHistory{stream: stream, log: log}
}

// Verify rolls back depth frames from the frame last, re-runs the simulation with the recorded
// inputs and compares the checksum of every produced state with the recorded snapshot.
func Verify(s Simulation, h History, last uint32, depth int) error {
	if depth <= 0 || uint32(depth) > last {
		return ErrInvalidVerifyDepth
	}

	base, ok := h.Snapshot(last - uint32(depth))
	if !ok {
		return fmt.Errorf("%w: snapshot %d", ErrNotEnoughHistory, last-uint32(depth))
	}

	states := base.Entities
	for frame := base.Frame + 1; frame <= last; frame++ {
		inputs, ok := h.Inputs(frame)
		if !ok {
			return fmt.Errorf("%w: inputs %d", ErrNotEnoughHistory, frame)
		}

		recorded, ok := h.Snapshot(frame)
		if !ok {
			return fmt.Errorf("%w: snapshot %d", ErrNotEnoughHistory, frame)
		}

		states = s.Step(frame, states, inputs)
		snapshot.Sort(states)

		if actual, expected := snapshot.Checksum(states), recorded.Checksum(); actual != expected {
			return &DivergenceError{
				Frame:    frame,
				Expected: expected,
				Actual:   actual,
			}
		}
	}

	return nil
}
