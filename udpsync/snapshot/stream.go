// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package snapshot

import "github.com/marko-gacesa/udpsync/sequence"

const DefaultStreamDepth = 128

// Stream is the server's rolling history of recent snapshots.
type Stream struct {
	history *sequence.History[*Snapshot]
}

func NewStream(depth int) *Stream {
	if depth <= 0 {
		depth = DefaultStreamDepth
	}
	return &Stream{
		history: sequence.NewHistory[*Snapshot](depth),
	}
}

// Push appends the snapshot. Snapshots older than the depth of the stream are evicted.
func (s *Stream) Push(snap *Snapshot) {
	s.history.Put(snap.Frame, snap)
}

func (s *Stream) Get(frame uint32) (*Snapshot, bool) {
	return s.history.Get(frame)
}

func (s *Stream) Latest() (*Snapshot, bool) {
	_, snap, ok := s.history.Newest()
	return snap, ok
}

func (s *Stream) Oldest() (*Snapshot, bool) {
	_, snap, ok := s.history.Oldest()
	return snap, ok
}

func (s *Stream) Len() int {
	return s.history.Len()
}

func (s *Stream) Depth() int {
	return s.history.Cap()
}
