// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sim

import (
	"errors"
	"testing"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

// counter adds buttons of all inputs to the points of the single score entity.
func counter(extra *int32) Simulation {
	return Func(func(frame uint32, prev []entity.State, inputs []Input) []entity.State {
		score := &entity.Score{EntityID: 1}
		if len(prev) > 0 {
			*score = *prev[0].(*entity.Score)
		}
		for _, in := range inputs {
			score.Points += int32(in.Command.Input.Buttons)
		}
		score.Points += *extra
		return []entity.State{score}
	})
}

func record(t *testing.T, s Simulation, frames uint32) (*snapshot.Stream, *Log) {
	t.Helper()

	stream := snapshot.NewStream(64)
	log := NewLog(64)

	var states []entity.State
	for frame := uint32(0); frame < frames; frame++ {
		inputs := []Input{{Command: command.Command{Frame: frame, Input: command.Input{Buttons: frame % 3}}}}
		log.Put(frame, inputs)
		states = s.Step(frame, states, inputs)
		snap := snapshot.Capture(frame, time.Duration(frame+1)*time.Millisecond, snapshot.States(states))
		stream.Push(snap)
		states = snap.Entities
	}

	return stream, log
}

func TestVerify(t *testing.T) {
	var extra int32
	s := counter(&extra)
	stream, log := record(t, s, 20)
	h := StreamHistory(stream, log)

	if err := Verify(s, h, 19, 10); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	extra = 1

	err := Verify(s, h, 19, 10)

	var divergence *DivergenceError
	if !errors.As(err, &divergence) {
		t.Fatalf("expected divergence, got %v", err)
	}
	if divergence.Frame != 10 {
		t.Errorf("divergence should be detected at the first re-simulated frame, got %d", divergence.Frame)
	}
	if !errors.Is(err, ErrDivergence) {
		t.Errorf("divergence error should wrap ErrDivergence")
	}
}

func TestVerify_History(t *testing.T) {
	var extra int32
	s := counter(&extra)
	stream, log := record(t, s, 20)
	h := StreamHistory(stream, log)

	if err := Verify(s, h, 19, 0); !errors.Is(err, ErrInvalidVerifyDepth) {
		t.Errorf("expected ErrInvalidVerifyDepth, got %v", err)
	}
	if err := Verify(s, h, 25, 3); !errors.Is(err, ErrNotEnoughHistory) {
		t.Errorf("expected ErrNotEnoughHistory, got %v", err)
	}
}

func TestLog_Copy(t *testing.T) {
	l := NewLog(4)
	inputs := []Input{{Entity: 1}}
	l.Put(1, inputs)
	inputs[0].Entity = 2

	got, ok := l.Get(1)
	if !ok || got[0].Entity != 1 {
		t.Errorf("log should keep a copy of inputs: %+v", got)
	}
}
