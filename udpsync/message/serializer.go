// Copyright (c) 2023-2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

import (
	"encoding/binary"
	"io"
	"math"
	"time"

	"github.com/marko-gacesa/udpsync/sequence"
)

// Serializer appends fixed-width little-endian values to a byte slice.
type Serializer struct {
	buf []byte
}

func NewSerializer(buf []byte) Serializer {
	return Serializer{buf: buf}
}

func (s *Serializer) Bytes() []byte {
	return s.buf
}

func (s *Serializer) Len() int {
	return len(s.buf)
}

func (s *Serializer) PutToken(v Token) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, uint32(v))
}

func (s *Serializer) Put8(v uint8) {
	s.buf = append(s.buf, v)
}

func (s *Serializer) Put16(v uint16) {
	s.buf = binary.LittleEndian.AppendUint16(s.buf, v)
}

func (s *Serializer) Put32(v uint32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
}

func (s *Serializer) Put64(v uint64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
}

func (s *Serializer) PutF32(v float32) {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, math.Float32bits(v))
}

func (s *Serializer) PutF64(v float64) {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, math.Float64bits(v))
}

func (s *Serializer) PutBytes(v []byte) {
	l := len(v)
	if l > math.MaxUint8 {
		panic("max len of array is 255")
	}
	s.Put8(uint8(l))
	s.buf = append(s.buf, v...)
}

func (s *Serializer) PutStr(v string) {
	l := len(v)
	if l > math.MaxUint8 {
		panic("max len of string is 255")
	}
	s.Put8(uint8(l))
	s.buf = append(s.buf, v...)
}

func (s *Serializer) Put(v Putter) {
	s.buf = v.Put(s.buf)
}

func (s *Serializer) PutDuration(v time.Duration) {
	s.Put64(uint64(v))
}

func (s *Serializer) PutSequence(v sequence.Sequence) {
	s.Put16(uint16(v))
}

// Deserializer reads fixed-width little-endian values from a byte slice.
// The first short read sets the error to io.ErrUnexpectedEOF, after which all reads are no-ops.
type Deserializer struct {
	buf []byte
	err error
}

func NewDeserializer(buf []byte) Deserializer {
	return Deserializer{buf: buf}
}

// Bytes returns the unread part of the buffer.
func (s *Deserializer) Bytes() []byte {
	return s.buf
}

func (s *Deserializer) Error() error {
	return s.err
}

func (s *Deserializer) Remaining() int {
	return len(s.buf)
}

func (s *Deserializer) take(n int) []byte {
	if s.err != nil {
		return nil
	}
	if len(s.buf) < n {
		s.err = io.ErrUnexpectedEOF
		s.buf = nil
		return nil
	}
	b := s.buf[:n]
	s.buf = s.buf[n:]
	return b
}

func (s *Deserializer) GetToken(v *Token) {
	if b := s.take(SizeOfToken); b != nil {
		*v = Token(binary.LittleEndian.Uint32(b))
	}
}

func (s *Deserializer) Get8(v *uint8) {
	if b := s.take(1); b != nil {
		*v = b[0]
	}
}

func (s *Deserializer) Get16(v *uint16) {
	if b := s.take(2); b != nil {
		*v = binary.LittleEndian.Uint16(b)
	}
}

func (s *Deserializer) Get32(v *uint32) {
	if b := s.take(4); b != nil {
		*v = binary.LittleEndian.Uint32(b)
	}
}

func (s *Deserializer) Get64(v *uint64) {
	if b := s.take(8); b != nil {
		*v = binary.LittleEndian.Uint64(b)
	}
}

func (s *Deserializer) GetF32(v *float32) {
	if b := s.take(4); b != nil {
		*v = math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

func (s *Deserializer) GetF64(v *float64) {
	if b := s.take(8); b != nil {
		*v = math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func (s *Deserializer) GetBytes(v *[]byte) {
	var l byte
	s.Get8(&l)
	if b := s.take(int(l)); b != nil {
		*v = make([]byte, l)
		copy(*v, b)
	}
}

func (s *Deserializer) GetStr(v *string) {
	var l byte
	s.Get8(&l)
	if b := s.take(int(l)); b != nil {
		*v = string(b)
	}
}

func (s *Deserializer) Get(v Getter) {
	if s.err != nil {
		return
	}
	rest, err := v.Get(s.buf)
	if err != nil {
		s.err = err
		s.buf = nil
		return
	}
	s.buf = rest
}

func (s *Deserializer) GetDuration(v *time.Duration) {
	var t uint64
	s.Get64(&t)
	*v = time.Duration(t)
}

func (s *Deserializer) GetSequence(v *sequence.Sequence) {
	var t uint16
	s.Get16(&t)
	*v = sequence.Sequence(t)
}
