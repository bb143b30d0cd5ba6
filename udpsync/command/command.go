// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package command

import "github.com/marko-gacesa/udpsync/udpsync/message"

// Input is the state of player controls during a single simulation tick.
type Input struct {
	Buttons uint32
	MoveX   float32
	MoveY   float32
	Aim     float32
}

// Command is the input a client wants applied at the simulation frame Frame.
type Command struct {
	Frame uint32
	Input Input
}

const SizeOfCommand = 4 + 4 + 4 + 4 + 4

var _ interface {
	message.Putter
	message.Getter
} = (*Command)(nil)

func (c *Command) Put(buf []byte) []byte {
	s := message.NewSerializer(buf)
	s.Put32(c.Frame)
	s.Put32(c.Input.Buttons)
	s.PutF32(c.Input.MoveX)
	s.PutF32(c.Input.MoveY)
	s.PutF32(c.Input.Aim)
	return s.Bytes()
}

func (c *Command) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	s.Get32(&c.Frame)
	s.Get32(&c.Input.Buttons)
	s.GetF32(&c.Input.MoveX)
	s.GetF32(&c.Input.MoveY)
	s.GetF32(&c.Input.Aim)
	return s.Bytes(), s.Error()
}
