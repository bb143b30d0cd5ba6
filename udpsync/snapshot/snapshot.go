// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package snapshot

import (
	"cmp"
	"hash/crc32"
	"slices"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/entity"
)

// Snapshot is the state of all replicated entities at the end of a simulation frame.
// Entities are sorted by id. A snapshot is never modified after it has been created.
type Snapshot struct {
	Frame    uint32
	Time     time.Duration
	Entities []entity.State
}

// Find returns the state of the entity with the provided id.
func (s *Snapshot) Find(id entity.ID) (entity.State, bool) {
	idx, ok := slices.BinarySearchFunc(s.Entities, id, func(e entity.State, id entity.ID) int {
		return cmp.Compare(e.ID(), id)
	})
	if !ok {
		return nil, false
	}
	return s.Entities[idx], true
}

// Checksum returns CRC-32 of the canonical encoding of the snapshot's entities.
func (s *Snapshot) Checksum() uint32 {
	return Checksum(s.Entities)
}

// Replicator produces the current states of the entities owned by a subsystem.
type Replicator interface {
	Replicate(dst []entity.State) []entity.State
}

// ReplicatorFunc adapts a plain function to Replicator.
type ReplicatorFunc func(dst []entity.State) []entity.State

func (f ReplicatorFunc) Replicate(dst []entity.State) []entity.State {
	return f(dst)
}

// States is a Replicator that replicates a fixed list of states.
type States []entity.State

func (s States) Replicate(dst []entity.State) []entity.State {
	return append(dst, s...)
}

// Capture aggregates states of all replicators into a new snapshot.
func Capture(frame uint32, t time.Duration, replicators ...Replicator) *Snapshot {
	var entities []entity.State
	for _, r := range replicators {
		entities = r.Replicate(entities)
	}

	Sort(entities)

	return &Snapshot{
		Frame:    frame,
		Time:     t,
		Entities: entities,
	}
}

// Sort orders states by entity id.
func Sort(entities []entity.State) {
	slices.SortStableFunc(entities, func(a, b entity.State) int {
		return cmp.Compare(a.ID(), b.ID())
	})
}

// Checksum returns CRC-32 of the canonical encoding of the states.
// The states are expected to be sorted by id.
func Checksum(entities []entity.State) uint32 {
	var buf []byte
	for _, e := range entities {
		buf = entity.Encode(buf, e)
	}
	return crc32.ChecksumIEEE(buf)
}
