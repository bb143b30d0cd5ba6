// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package replay stores the simulation stream of a session in a zstd compressed file
// and re-runs it offline to check that the simulation is deterministic.
package replay

import (
	"errors"

	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/message/world"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

var (
	ErrInvalid  = errors.New("invalid replay record")
	ErrBadMagic = errors.New("not a replay file")
	ErrGap      = errors.New("replay frames are not consecutive")
	ErrEmpty    = errors.New("replay is empty")
)

var magic = [4]byte{'U', 'S', 'R', 1}

// MaxRecordSize limits the size of a single record.
const MaxRecordSize = 16 << 20

const sizeOfInput = 4 + 4 + 1 + 1 + command.SizeOfCommand

// Record is everything that happened in a single simulation frame:
// the inputs the frame was simulated with and the resulting snapshot.
type Record struct {
	Frame    uint32
	Inputs   []sim.Input
	Snapshot *snapshot.Snapshot
}

func (r *Record) Put(buf []byte) []byte {
	s := message.NewSerializer(buf)
	s.Put32(r.Frame)
	s.Put16(uint16(len(r.Inputs)))
	for i := range r.Inputs {
		in := &r.Inputs[i]
		s.PutToken(in.Peer)
		s.Put32(uint32(in.Entity))
		s.Put8(byte(in.Event))
		s.Put8(byte(in.Status))
		s.Put(&in.Command)
	}

	pack := world.Pack{Snapshot: *r.Snapshot}
	return pack.Put(s.Bytes())
}

func (r *Record) Get(buf []byte) ([]byte, error) {
	var (
		frame uint32
		l     uint16
	)

	s := message.NewDeserializer(buf)
	s.Get32(&frame)
	s.Get16(&l)
	if err := s.Error(); err != nil {
		return nil, err
	}
	if s.Remaining() < int(l)*sizeOfInput {
		return nil, ErrInvalid
	}

	inputs := make([]sim.Input, l)
	for i := range inputs {
		var (
			entityID uint32
			event    byte
			status   byte
		)
		s.GetToken(&inputs[i].Peer)
		s.Get32(&entityID)
		s.Get8(&event)
		s.Get8(&status)
		s.Get(&inputs[i].Command)

		inputs[i].Entity = entity.ID(entityID)
		inputs[i].Event = sim.Event(event)
		inputs[i].Status = command.Status(status)
	}
	if err := s.Error(); err != nil {
		return nil, err
	}

	var pack world.Pack
	buf, err := pack.Get(s.Bytes())
	if err != nil {
		return nil, err
	}
	if pack.Snapshot.Frame != frame {
		return nil, ErrInvalid
	}

	r.Frame = frame
	r.Inputs = inputs
	r.Snapshot = &pack.Snapshot

	return buf, nil
}
