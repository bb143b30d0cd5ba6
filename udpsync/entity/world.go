// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package entity

// Listener is notified once when an entity appears in the world and once when it leaves it.
type Listener interface {
	Link(s State)
	Unlink(id ID)
}

// World is a dense arena of entity states indexed by entity id.
type World struct {
	slots     []State
	marks     []uint32
	gen       uint32
	count     int
	listeners []Listener
}

func NewWorld(listeners ...Listener) *World {
	return &World{
		listeners: listeners,
	}
}

// AddListener registers a listener. Entities already in the world are linked to it.
func (w *World) AddListener(l Listener) {
	w.listeners = append(w.listeners, l)
	for _, s := range w.slots {
		if s != nil {
			l.Link(s)
		}
	}
}

// Apply replaces the content of the world with the provided states.
// Listeners receive Unlink for every entity that is gone and Link for every new one.
func (w *World) Apply(states []State) {
	w.gen++

	for _, s := range states {
		id := s.ID()
		w.grow(id)
		w.marks[id] = w.gen
	}

	for id, s := range w.slots {
		if s == nil || w.marks[id] == w.gen {
			continue
		}
		w.slots[id] = nil
		w.count--
		for _, l := range w.listeners {
			l.Unlink(ID(id))
		}
	}

	for _, s := range states {
		id := s.ID()
		prev := w.slots[id]
		w.slots[id] = s
		if prev != nil {
			continue
		}
		w.count++
		for _, l := range w.listeners {
			l.Link(s)
		}
	}
}

// Clear removes all entities, notifying listeners.
func (w *World) Clear() {
	w.Apply(nil)
}

func (w *World) Get(id ID) (State, bool) {
	if int(id) >= len(w.slots) || w.slots[id] == nil {
		return nil, false
	}
	return w.slots[id], true
}

func (w *World) Len() int {
	return w.count
}

// States returns all entities ordered by id.
func (w *World) States() []State {
	result := make([]State, 0, w.count)
	for _, s := range w.slots {
		if s != nil {
			result = append(result, s)
		}
	}
	return result
}

func (w *World) grow(id ID) {
	if int(id) < len(w.slots) {
		return
	}
	n := max(int(id)+1, 2*len(w.slots))
	slots := make([]State, n)
	marks := make([]uint32, n)
	copy(slots, w.slots)
	copy(marks, w.marks)
	w.slots = slots
	w.marks = marks
}
