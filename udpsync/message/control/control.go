// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package control contains messages that are delivered through the reliable slot of a link.
package control

import (
	"errors"
	"unicode/utf8"

	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

var ErrInvalid = errors.New("invalid control message")

type Message interface {
	message.Putter
	message.Getter
	Kind() message.Kind
}

// MaxNameLength is the maximum length of a player name in bytes.
const MaxNameLength = 32

// TruncateName shortens the name to at most MaxNameLength bytes without splitting a UTF-8 sequence.
func TruncateName(name string) string {
	if len(name) <= MaxNameLength {
		return name
	}
	n := MaxNameLength
	for n > 0 && !utf8.RuneStart(name[n]) {
		n--
	}
	return name[:n]
}

// Hello is sent by a client to join the session.
type Hello struct {
	Name string
}

// Welcome is the server's reply to Hello.
type Welcome struct {
	Token    message.Token
	EntityID entity.ID
	TickRate uint16
	Frame    uint32
}

// Bye is sent by either side when it leaves.
type Bye struct{}

var (
	_ Message = (*Hello)(nil)
	_ Message = (*Welcome)(nil)
	_ Message = (*Bye)(nil)
)

func (*Hello) Kind() message.Kind   { return message.KindHello }
func (*Welcome) Kind() message.Kind { return message.KindWelcome }
func (*Bye) Kind() message.Kind     { return message.KindBye }

func (m *Hello) Put(buf []byte) []byte {
	s := message.NewSerializer(buf)
	s.Put8(byte(message.KindHello))
	s.PutStr(m.Name)
	return s.Bytes()
}

func (m *Hello) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	if !s.CheckKind(message.KindHello) {
		return nil, ErrInvalid
	}
	s.GetStr(&m.Name)
	return s.Bytes(), s.Error()
}

func (m *Welcome) Put(buf []byte) []byte {
	s := message.NewSerializer(buf)
	s.Put8(byte(message.KindWelcome))
	s.PutToken(m.Token)
	s.Put32(uint32(m.EntityID))
	s.Put16(m.TickRate)
	s.Put32(m.Frame)
	return s.Bytes()
}

func (m *Welcome) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	if !s.CheckKind(message.KindWelcome) {
		return nil, ErrInvalid
	}
	var id uint32
	s.GetToken(&m.Token)
	s.Get32(&id)
	s.Get16(&m.TickRate)
	s.Get32(&m.Frame)
	m.EntityID = entity.ID(id)
	return s.Bytes(), s.Error()
}

func (m *Bye) Put(buf []byte) []byte {
	return append(buf, byte(message.KindBye))
}

func (m *Bye) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	if !s.CheckKind(message.KindBye) {
		return nil, ErrInvalid
	}
	return s.Bytes(), nil
}

// Parse decodes a control message.
func Parse(buf []byte) (Message, error) {
	kind, ok := message.PeekKind(buf)
	if !ok {
		return nil, ErrInvalid
	}

	var m Message
	switch kind {
	case message.KindHello:
		m = &Hello{}
	case message.KindWelcome:
		m = &Welcome{}
	case message.KindBye:
		m = &Bye{}
	default:
		return nil, ErrInvalid
	}

	if _, err := m.Get(buf); err != nil {
		return nil, err
	}

	return m, nil
}
