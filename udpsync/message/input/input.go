// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package input

import (
	"errors"
	"math"

	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

var ErrInvalid = errors.New("invalid command pack")

// Pack carries all not yet acknowledged commands of a client, oldest first.
type Pack struct {
	Commands []command.Command
}

var _ interface {
	message.Putter
	message.Getter
} = (*Pack)(nil)

func (m *Pack) Size() int {
	return 1 + 1 + len(m.Commands)*command.SizeOfCommand
}

func (m *Pack) Put(buf []byte) []byte {
	l := len(m.Commands)
	if l > math.MaxUint8 {
		panic("max number of commands is 255")
	}

	s := message.NewSerializer(buf)
	s.Put8(byte(message.KindCommands))
	s.Put8(uint8(l))
	for i := range m.Commands {
		s.Put(&m.Commands[i])
	}

	return s.Bytes()
}

func (m *Pack) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	if !s.CheckKind(message.KindCommands) {
		return nil, ErrInvalid
	}

	var l byte
	s.Get8(&l)
	if s.Remaining() < int(l)*command.SizeOfCommand {
		return nil, ErrInvalid
	}

	m.Commands = make([]command.Command, l)
	for i := range m.Commands {
		s.Get(&m.Commands[i])
	}

	if err := s.Error(); err != nil {
		return nil, err
	}

	return s.Bytes(), nil
}
