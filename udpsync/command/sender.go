// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package command

import "github.com/marko-gacesa/udpsync/sequence"

const DefaultSenderCapacity = 32

// Sender holds client commands that are not yet acknowledged by the server.
// All of them are sent with every outgoing packet.
type Sender struct {
	pending *sequence.Recent[Command]
}

func NewSender(capacity int) *Sender {
	if capacity <= 0 {
		capacity = DefaultSenderCapacity
	}
	return &Sender{
		pending: sequence.NewRecent[Command](capacity),
	}
}

// Push adds a command. If the buffer is full the oldest command is dropped.
// A command for a frame not newer than the last pushed one replaces nothing and is ignored.
func (s *Sender) Push(cmd Command) bool {
	if last, ok := s.pending.Last(); ok && cmd.Frame <= last.Frame {
		return false
	}
	s.pending.Push(cmd)
	return true
}

// Ack drops all commands for the frame and older.
func (s *Sender) Ack(frame uint32) int {
	return s.pending.RemoveFn(func(c Command) bool {
		return c.Frame <= frame
	})
}

// Pending returns unacknowledged commands, oldest first.
func (s *Sender) Pending() []Command {
	return s.pending.Slice()
}

// After returns pending commands newer than the frame, oldest first.
func (s *Sender) After(frame uint32) []Command {
	var result []Command
	s.pending.Iterate(func(c Command) bool {
		if c.Frame > frame {
			result = append(result, c)
		}
		return true
	})
	return result
}

func (s *Sender) Len() int {
	return s.pending.Len()
}

func (s *Sender) Clear() {
	s.pending.Clear()
}
