// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package world

import (
	"errors"
	"math"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

var ErrInvalid = errors.New("invalid snapshot pack")

// Pack carries a snapshot from the server to a client.
type Pack struct {
	// FrameDiff is how many frames ahead of the server the client's newest command was
	// when the snapshot was taken.
	FrameDiff float32

	Snapshot snapshot.Snapshot
}

var _ interface {
	message.Putter
	message.Getter
} = (*Pack)(nil)

const sizeOfBase = 1 + 4 + 4 + 8 + 2

func (m *Pack) Put(buf []byte) []byte {
	l := len(m.Snapshot.Entities)
	if l > math.MaxUint16 {
		panic("max number of entities is 65535")
	}

	s := message.NewSerializer(buf)
	s.Put8(byte(message.KindSnapshot))
	s.PutF32(m.FrameDiff)
	s.Put32(m.Snapshot.Frame)
	s.PutDuration(m.Snapshot.Time)
	s.Put16(uint16(l))

	buf = s.Bytes()
	for _, e := range m.Snapshot.Entities {
		buf = entity.Encode(buf, e)
	}

	return buf
}

func (m *Pack) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	if !s.CheckKind(message.KindSnapshot) {
		return nil, ErrInvalid
	}

	var (
		frameDiff float32
		frame     uint32
		t         time.Duration
		l         uint16
	)

	s.GetF32(&frameDiff)
	s.Get32(&frame)
	s.GetDuration(&t)
	s.Get16(&l)
	if err := s.Error(); err != nil {
		return nil, err
	}

	buf = s.Bytes()
	if len(buf) < int(l)*entity.SizeOfPrefix {
		return nil, ErrInvalid
	}

	entities := make([]entity.State, l)
	for i := range entities {
		var err error
		entities[i], buf, err = entity.Decode(buf)
		if err != nil {
			return nil, err
		}
		if i > 0 && entities[i-1].ID() >= entities[i].ID() {
			return nil, ErrInvalid
		}
	}

	m.FrameDiff = frameDiff
	m.Snapshot = snapshot.Snapshot{
		Frame:    frame,
		Time:     t,
		Entities: entities,
	}

	return buf, nil
}
