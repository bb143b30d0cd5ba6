// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package replay

import (
	"errors"
	"fmt"
	"io"

	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

// Result summarizes a verified replay.
type Result struct {
	First  uint32
	Last   uint32
	Frames int
}

// Verify starts from the state of the first record and re-runs the simulation
// with the recorded inputs of all following records. Every produced state must have
// the same checksum as the recorded snapshot, otherwise a *sim.DivergenceError is returned.
func Verify(s sim.Simulation, r *Reader) (Result, error) {
	first, err := r.Next()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrEmpty
	}
	if err != nil {
		return Result{}, err
	}

	res := Result{First: first.Frame, Last: first.Frame, Frames: 1}
	states := first.Snapshot.Entities

	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, err
		}

		if rec.Frame != res.Last+1 {
			return res, fmt.Errorf("%w: frame %d after %d", ErrGap, rec.Frame, res.Last)
		}

		states = s.Step(rec.Frame, states, rec.Inputs)
		snapshot.Sort(states)

		if actual, expected := snapshot.Checksum(states), rec.Snapshot.Checksum(); actual != expected {
			return res, &sim.DivergenceError{
				Frame:    rec.Frame,
				Expected: expected,
				Actual:   actual,
			}
		}

		res.Last = rec.Frame
		res.Frames++
	}
}
