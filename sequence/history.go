// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sequence

// History keeps values keyed by frame number inside a sliding window of fixed capacity.
// The window ends at the newest frame ever stored: anything older than newest-capacity is
// forgotten. Frames inside the window may be missing, so the history is sparse.
// Implementation uses a ring indexed by frame modulo capacity.
type History[T any] struct {
	slots  []historySlot[T]
	newest uint32
	filled bool
	count  int
}

type historySlot[T any] struct {
	frame uint32
	valid bool
	value T
}

func NewHistory[T any](capacity int) *History[T] {
	if capacity <= 0 {
		panic("history: capacity must be positive")
	}
	return &History[T]{
		slots: make([]historySlot[T], capacity),
	}
}

// Put stores the value for the frame. It returns false if the frame is too old for the window.
// Storing a value for a frame that is already present replaces it.
func (h *History[T]) Put(frame uint32, v T) bool {
	if h.filled && !h.inWindow(frame) && frame < h.newest {
		return false
	}

	if !h.filled || frame > h.newest {
		h.advance(frame)
	}

	slot := &h.slots[h.index(frame)]
	if !slot.valid || slot.frame != frame {
		h.count++
	}

	*slot = historySlot[T]{frame: frame, valid: true, value: v}

	return true
}

// Get returns the value stored for the frame.
func (h *History[T]) Get(frame uint32) (v T, ok bool) {
	if !h.filled || !h.inWindow(frame) {
		return
	}

	slot := &h.slots[h.index(frame)]
	if !slot.valid || slot.frame != frame {
		return
	}

	return slot.value, true
}

// Floor returns the most recent value stored for the frame or any frame before it.
func (h *History[T]) Floor(frame uint32) (f uint32, v T, ok bool) {
	if !h.filled {
		return
	}

	f = min(frame, h.newest)
	low := h.low()
	for {
		if f < low {
			return 0, v, false
		}
		if slot := &h.slots[h.index(f)]; slot.valid && slot.frame == f {
			return f, slot.value, true
		}
		if f == 0 {
			return 0, v, false
		}
		f--
	}
}

// Newest returns the most recent stored value.
func (h *History[T]) Newest() (uint32, T, bool) {
	return h.Floor(h.newest)
}

// Oldest returns the oldest value still inside the window.
func (h *History[T]) Oldest() (f uint32, v T, ok bool) {
	h.Iterate(func(frame uint32, value T) bool {
		f, v, ok = frame, value, true
		return false
	})
	return
}

// Remove deletes the value for the frame.
func (h *History[T]) Remove(frame uint32) {
	if !h.filled || !h.inWindow(frame) {
		return
	}

	slot := &h.slots[h.index(frame)]
	if slot.valid && slot.frame == frame {
		*slot = historySlot[T]{}
		h.count--
	}
}

// RemoveBefore deletes all values for frames older than the provided one.
func (h *History[T]) RemoveBefore(frame uint32) {
	for i := range h.slots {
		if h.slots[i].valid && h.slots[i].frame < frame {
			h.slots[i] = historySlot[T]{}
			h.count--
		}
	}
}

// Iterate calls fn for every stored value, from the oldest frame to the newest, until fn returns false.
func (h *History[T]) Iterate(fn func(frame uint32, v T) bool) {
	if !h.filled || h.count == 0 {
		return
	}

	for f := h.low(); ; f++ {
		slot := &h.slots[h.index(f)]
		if slot.valid && slot.frame == f {
			if !fn(f, slot.value) {
				return
			}
		}
		if f == h.newest {
			return
		}
	}
}

func (h *History[T]) Len() int {
	return h.count
}

func (h *History[T]) Cap() int {
	return len(h.slots)
}

// NewestFrame returns the newest frame the window ends at, and false if nothing was ever stored.
func (h *History[T]) NewestFrame() (uint32, bool) {
	return h.newest, h.filled
}

func (h *History[T]) Clear() {
	clear(h.slots)
	h.newest = 0
	h.filled = false
	h.count = 0
}

func (h *History[T]) advance(frame uint32) {
	h.newest = frame
	h.filled = true

	// drop values that fell out of the window
	low := h.low()
	for i := range h.slots {
		if h.slots[i].valid && h.slots[i].frame < low {
			h.slots[i] = historySlot[T]{}
			h.count--
		}
	}
}

func (h *History[T]) low() uint32 {
	size := uint32(len(h.slots))
	if h.newest < size {
		return 0
	}
	return h.newest - size + 1
}

func (h *History[T]) inWindow(frame uint32) bool {
	return frame >= h.low() && frame <= h.newest
}

func (h *History[T]) index(frame uint32) int {
	return int(frame % uint32(len(h.slots)))
}
