// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package command

import "github.com/marko-gacesa/udpsync/sequence"

const DefaultBufferCapacity = 64

// Status describes where the command returned by Buffer.Take came from.
type Status byte

const (
	// Missing means that nothing was ever received from the client. Zero input is used.
	Missing Status = iota

	// Received means that the command for the frame arrived in time.
	Received

	// Filled means that the command for the frame was not received
	// and the most recent earlier command has been substituted.
	Filled
)

func (s Status) String() string {
	switch s {
	case Missing:
		return "missing"
	case Received:
		return "received"
	case Filled:
		return "filled"
	}
	return "unknown"
}

// Buffer is the server side store of commands received from a single client, keyed by frame.
type Buffer struct {
	received *sequence.History[Command]

	last    Command
	hasLast bool

	taken    uint32
	hasTaken bool

	lastReceived    uint32
	hasLastReceived bool

	countReceived int
	countFilled   int
	countMissing  int
}

func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultBufferCapacity
	}
	return &Buffer{
		received: sequence.NewHistory[Command](capacity),
	}
}

// Put stores the command. Commands for frames that have already been consumed are ignored.
// Storing a command for the same frame again overwrites the previous one.
func (b *Buffer) Put(cmd Command) bool {
	if b.hasTaken && cmd.Frame <= b.taken {
		return false
	}

	if !b.received.Put(cmd.Frame, cmd) {
		return false
	}

	if !b.hasLastReceived || cmd.Frame > b.lastReceived {
		b.lastReceived = cmd.Frame
		b.hasLastReceived = true
	}

	return true
}

// Take returns the command for the frame. Frames must be taken in increasing order.
func (b *Buffer) Take(frame uint32) (Command, Status) {
	b.taken = frame
	b.hasTaken = true

	if cmd, ok := b.received.Get(frame); ok {
		b.received.RemoveBefore(frame + 1)
		b.last = cmd
		b.hasLast = true
		b.countReceived++
		return cmd, Received
	}

	if _, cmd, ok := b.received.Floor(frame); ok {
		b.last = cmd
		b.hasLast = true
	}

	b.received.RemoveBefore(frame + 1)

	if !b.hasLast {
		b.countMissing++
		return Command{Frame: frame}, Missing
	}

	b.countFilled++

	return Command{Frame: frame, Input: b.last.Input}, Filled
}

// LastReceived returns the newest frame received from the client.
func (b *Buffer) LastReceived() (uint32, bool) {
	return b.lastReceived, b.hasLastReceived
}

// FrameDiff returns how many frames ahead of the frame the client's newest command is.
// Negative values mean that the client is late.
func (b *Buffer) FrameDiff(frame uint32) int {
	if !b.hasLastReceived {
		return 0
	}
	return int(int32(b.lastReceived - frame))
}

func (b *Buffer) Received() int { return b.countReceived }
func (b *Buffer) Filled() int   { return b.countFilled }
func (b *Buffer) Missing() int  { return b.countMissing }

func (b *Buffer) Len() int {
	return b.received.Len()
}
