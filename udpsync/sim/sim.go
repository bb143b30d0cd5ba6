// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package sim defines the boundary between the session and the gameplay logic.
package sim

import (
	"github.com/marko-gacesa/udpsync/sequence"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

// Event is a change of peer membership applied at a frame.
type Event byte

const (
	EventNone Event = iota
	EventJoin
	EventLeave
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventJoin:
		return "join"
	case EventLeave:
		return "leave"
	}
	return "unknown"
}

// Input is what a single peer contributes to a simulation frame.
type Input struct {
	Peer    message.Token
	Entity  entity.ID
	Event   Event
	Status  command.Status
	Command command.Command
}

// Simulation is the gameplay logic. Step must be a pure function of its arguments:
// it must not modify prev and must return new states for everything that changed.
type Simulation interface {
	Step(frame uint32, prev []entity.State, inputs []Input) []entity.State
}

// Func adapts a plain function to Simulation.
type Func func(frame uint32, prev []entity.State, inputs []Input) []entity.State

func (f Func) Step(frame uint32, prev []entity.State, inputs []Input) []entity.State {
	return f(frame, prev, inputs)
}

const DefaultLogDepth = 128

// Log keeps inputs of recent frames for re-simulation.
type Log struct {
	history *sequence.History[[]Input]
}

func NewLog(depth int) *Log {
	if depth <= 0 {
		depth = DefaultLogDepth
	}
	return &Log{history: sequence.NewHistory[[]Input](depth)}
}

// Put stores a copy of the inputs of the frame.
func (l *Log) Put(frame uint32, inputs []Input) {
	l.history.Put(frame, append([]Input(nil), inputs...))
}

func (l *Log) Get(frame uint32) ([]Input, bool) {
	return l.history.Get(frame)
}
