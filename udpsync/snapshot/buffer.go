// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package snapshot

import (
	"time"

	"github.com/marko-gacesa/udpsync/sequence"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
)

const (
	DefaultBufferCapacity   = 32
	DefaultMaxExtrapolation = 250 * time.Millisecond
)

// Buffer is the client side store of received snapshots, keyed by frame.
// Frames may be missing.
type Buffer struct {
	history          *sequence.History[*Snapshot]
	maxExtrapolation time.Duration
}

func NewBuffer(capacity int, maxExtrapolation time.Duration) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	if maxExtrapolation < 0 {
		maxExtrapolation = 0
	}
	return &Buffer{
		history:          sequence.NewHistory[*Snapshot](capacity),
		maxExtrapolation: maxExtrapolation,
	}
}

// Insert stores the snapshot. Duplicates and snapshots too old for the buffer are dropped.
func (b *Buffer) Insert(snap *Snapshot) bool {
	if _, ok := b.history.Get(snap.Frame); ok {
		return false
	}
	return b.history.Put(snap.Frame, snap)
}

func (b *Buffer) Newest() (*Snapshot, bool) {
	_, snap, ok := b.history.Newest()
	return snap, ok
}

func (b *Buffer) Len() int {
	return b.history.Len()
}

func (b *Buffer) Clear() {
	b.history.Clear()
}

// Sample is the world state at a render time.
type Sample struct {
	Entities []entity.State

	// From and To are frames of the snapshots used. They are equal when no interpolation took place.
	From, To uint32

	// Alpha is the interpolation factor between From and To.
	Alpha float32

	// Shortfall is how far the render time is past the newest snapshot.
	Shortfall time.Duration

	// Extrapolated is how far the entities were moved beyond the newest snapshot.
	Extrapolated time.Duration

	// Frozen is true if the render time exceeded the extrapolation limit.
	Frozen bool

	Valid bool
}

// Sample returns entity states at the render time. Between two snapshots the states are
// interpolated. Past the newest snapshot they are extrapolated up to the limit and then frozen.
func (b *Buffer) Sample(renderTime time.Duration) Sample {
	var from, to *Snapshot
	b.history.Iterate(func(_ uint32, snap *Snapshot) bool {
		if snap.Time <= renderTime {
			from = snap
			return true
		}
		to = snap
		return false
	})

	switch {
	case from == nil && to == nil:
		return Sample{}

	case from == nil:
		// render time is before the oldest snapshot
		return Sample{
			Entities: to.Entities,
			From:     to.Frame,
			To:       to.Frame,
			Valid:    true,
		}

	case to == nil:
		shortfall := renderTime - from.Time
		ext := min(shortfall, b.maxExtrapolation)
		return Sample{
			Entities:     extrapolate(from.Entities, ext),
			From:         from.Frame,
			To:           from.Frame,
			Shortfall:    shortfall,
			Extrapolated: ext,
			Frozen:       shortfall > b.maxExtrapolation,
			Valid:        true,
		}
	}

	alpha := float32(float64(renderTime-from.Time) / float64(to.Time-from.Time))

	return Sample{
		Entities: interpolate(from, to, alpha),
		From:     from.Frame,
		To:       to.Frame,
		Alpha:    alpha,
		Valid:    true,
	}
}

// interpolate returns the entities of the older snapshot moved toward the newer one.
// Entities that exist only in the newer snapshot appear when it is reached.
func interpolate(from, to *Snapshot, alpha float32) []entity.State {
	result := make([]entity.State, 0, len(from.Entities))
	for _, a := range from.Entities {
		if b, ok := to.Find(a.ID()); ok {
			result = append(result, a.Lerp(b, alpha))
		} else {
			result = append(result, a)
		}
	}
	return result
}

func extrapolate(entities []entity.State, d time.Duration) []entity.State {
	if d <= 0 {
		return entities
	}

	result := make([]entity.State, len(entities))
	for i, e := range entities {
		if x, ok := e.(entity.Extrapolator); ok {
			result[i] = x.Extrapolate(d)
		} else {
			result[i] = e
		}
	}

	return result
}
