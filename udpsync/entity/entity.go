// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/message"
)

// ID is a stable entity identifier. Zero is never assigned to an entity.
type ID uint32

// MaxID bounds entity ids so that they can be used as indexes of a dense arena.
const MaxID ID = 1<<16 - 1

// Kind tags the concrete type of State on the wire.
type Kind uint8

const (
	KindBody Kind = iota + 1
	KindScore
)

func (k Kind) String() string {
	switch k {
	case KindBody:
		return "body"
	case KindScore:
		return "score"
	}
	return "unknown"
}

// State is the replicated state of a single entity.
// A State placed into a snapshot must not be modified.
type State interface {
	ID() ID
	Kind() Kind

	// Put appends type specific fields (without kind and id) to the buffer.
	Put([]byte) []byte

	// Get reads type specific fields (without kind and id) from the buffer.
	Get([]byte) ([]byte, error)

	// Lerp returns a new state between the receiver (t=0) and the state to (t=1).
	Lerp(to State, t float32) State
}

// Extrapolator is implemented by states that can be moved forward in time.
type Extrapolator interface {
	Extrapolate(d time.Duration) State
}

var (
	ErrUnknownKind = errors.New("unknown entity kind")
	ErrInvalidID   = errors.New("invalid entity id")
)

// New returns an empty state of the given kind.
func New(kind Kind, id ID) (State, error) {
	if id == 0 || id > MaxID {
		return nil, fmt.Errorf("%w: %d", ErrInvalidID, id)
	}

	switch kind {
	case KindBody:
		return &Body{EntityID: id}, nil
	case KindScore:
		return &Score{EntityID: id}, nil
	}

	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, kind)
}

// SizeOfPrefix is the size of kind and id that precede every encoded state.
const SizeOfPrefix = 1 + 4

// Encode appends kind, id and the fields of the state.
func Encode(buf []byte, s State) []byte {
	ser := message.NewSerializer(buf)
	ser.Put8(uint8(s.Kind()))
	ser.Put32(uint32(s.ID()))
	ser.Put(s)
	return ser.Bytes()
}

// Decode reads a state written with Encode.
func Decode(buf []byte) (State, []byte, error) {
	var kind uint8
	var id uint32

	des := message.NewDeserializer(buf)
	des.Get8(&kind)
	des.Get32(&id)
	if err := des.Error(); err != nil {
		return nil, nil, err
	}

	s, err := New(Kind(kind), ID(id))
	if err != nil {
		return nil, nil, err
	}

	des.Get(s)
	if err := des.Error(); err != nil {
		return nil, nil, err
	}

	return s, des.Bytes(), nil
}
