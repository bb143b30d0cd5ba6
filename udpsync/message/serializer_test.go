// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

import (
	"bytes"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/marko-gacesa/udpsync/sequence"
)

func TestSerializer(t *testing.T) {
	tests := []any{
		Token(1977),
		byte(23),
		uint16(1000),
		uint32(100000),
		uint64(1000000000000),
		float32(-1.25),
		float64(3.5e10),
		[]byte("Marko"),
		"Gaćeša",
		time.Since(time.Unix(0, 0)),
		sequence.Sequence(42),
		&dummy{
			s: "qwerty",
			x: 55,
			a: 777,
		},
	}

	for _, value := range tests {
		var buffer [4096]byte
		t.Run(fmt.Sprintf("%T", value), func(t *testing.T) {
			serEmpty := NewSerializer(nil)
			serFull := NewSerializer(buffer[:0])

			switch v := value.(type) {
			case Token:
				serEmpty.PutToken(v)
				serFull.PutToken(v)
			case byte:
				serEmpty.Put8(v)
				serFull.Put8(v)
			case uint16:
				serEmpty.Put16(v)
				serFull.Put16(v)
			case uint32:
				serEmpty.Put32(v)
				serFull.Put32(v)
			case uint64:
				serEmpty.Put64(v)
				serFull.Put64(v)
			case float32:
				serEmpty.PutF32(v)
				serFull.PutF32(v)
			case float64:
				serEmpty.PutF64(v)
				serFull.PutF64(v)
			case []byte:
				serEmpty.PutBytes(v)
				serFull.PutBytes(v)
			case string:
				serEmpty.PutStr(v)
				serFull.PutStr(v)
			case time.Duration:
				serEmpty.PutDuration(v)
				serFull.PutDuration(v)
			case sequence.Sequence:
				serEmpty.PutSequence(v)
				serFull.PutSequence(v)
			case *dummy:
				serEmpty.Put(v)
				serFull.Put(v)
			}

			if !bytes.Equal(serEmpty.Bytes(), serFull.Bytes()) {
				t.Errorf("serEmpty.Bytes() != serFull.Bytes()")
				return
			}

			b := serEmpty.Bytes()

			desShort := NewDeserializer(b[0 : len(b)-1])
			desFull := NewDeserializer(b)

			var matchShort bool
			var matchFull bool

			switch v := value.(type) {
			case Token:
				var q, w Token
				desShort.GetToken(&q)
				desFull.GetToken(&w)
				matchShort, matchFull = q == 0, w == v
			case byte:
				var q, w byte
				desShort.Get8(&q)
				desFull.Get8(&w)
				matchShort, matchFull = q == 0, w == v
			case uint16:
				var q, w uint16
				desShort.Get16(&q)
				desFull.Get16(&w)
				matchShort, matchFull = q == 0, w == v
			case uint32:
				var q, w uint32
				desShort.Get32(&q)
				desFull.Get32(&w)
				matchShort, matchFull = q == 0, w == v
			case uint64:
				var q, w uint64
				desShort.Get64(&q)
				desFull.Get64(&w)
				matchShort, matchFull = q == 0, w == v
			case float32:
				var q, w float32
				desShort.GetF32(&q)
				desFull.GetF32(&w)
				matchShort, matchFull = q == 0, w == v
			case float64:
				var q, w float64
				desShort.GetF64(&q)
				desFull.GetF64(&w)
				matchShort, matchFull = q == 0, w == v
			case []byte:
				var q, w []byte
				desShort.GetBytes(&q)
				desFull.GetBytes(&w)
				matchShort, matchFull = q == nil, bytes.Equal(w, v)
			case string:
				var q, w string
				desShort.GetStr(&q)
				desFull.GetStr(&w)
				matchShort, matchFull = q == "", w == v
			case time.Duration:
				var q, w time.Duration
				desShort.GetDuration(&q)
				desFull.GetDuration(&w)
				matchShort, matchFull = q == 0, w == v
			case sequence.Sequence:
				var q, w sequence.Sequence
				desShort.GetSequence(&q)
				desFull.GetSequence(&w)
				matchShort, matchFull = q == 0, w == v
			case *dummy:
				var q, w dummy
				desShort.Get(&q)
				desFull.Get(&w)
				matchShort, matchFull = q == dummy{}, w == *v
			}

			if errShort := desShort.Error(); errShort != io.ErrUnexpectedEOF {
				t.Error("errShort != UnexpectedEOF")
			}

			if errFull := desFull.Error(); errFull != nil {
				t.Error("errFull != nil")
			}

			if desFull.Remaining() != 0 {
				t.Errorf("unread bytes: %d", desFull.Remaining())
			}

			if !matchShort {
				t.Error("values do not match on short")
			}

			if !matchFull {
				t.Error("values do not match on full")
			}
		})
	}
}

func TestHeader(t *testing.T) {
	h := Header{
		Sequence: 65535,
		Ack:      3,
		AckBits:  0b1011,
		Tag:      12345,
	}

	buf := h.Put(nil)
	if len(buf) != SizeOfHeader {
		t.Fatalf("size mismatch: expected=%d got=%d", SizeOfHeader, len(buf))
	}

	expected := []byte{0xFF, 0xFF, 3, 0, 0b1011, 0, 0, 0, 0x39, 0x30, 0, 0}
	if !bytes.Equal(expected, buf) {
		t.Errorf("wire mismatch: expected=%v got=%v", expected, buf)
	}

	var g Header
	rest, err := g.Get(append(buf, 7))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g != h {
		t.Errorf("header mismatch: expected=%+v got=%+v", h, g)
	}
	if !bytes.Equal(rest, []byte{7}) {
		t.Errorf("rest mismatch: %v", rest)
	}

	if _, err := g.Get(buf[:SizeOfHeader-1]); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}

	acked := map[sequence.Sequence]bool{3: true, 2: true, 1: true, 0: false, 65535: true, 65534: false}
	for seq, exp := range acked {
		if got := h.Acked(seq); got != exp {
			t.Errorf("Acked(%d): expected=%t got=%t", seq, exp, got)
		}
	}
}

type dummy struct {
	s string
	x byte
	a uint32
}

func (d *dummy) Put(a []byte) []byte {
	s := NewSerializer(a)
	s.PutStr(d.s)
	s.Put8(d.x)
	s.Put32(d.a)
	return s.Bytes()
}

func (d *dummy) Get(a []byte) ([]byte, error) {
	s := NewDeserializer(a)
	s.GetStr(&d.s)
	s.Get8(&d.x)
	s.Get32(&d.a)
	if err := s.Error(); err != nil {
		*d = dummy{}
		return nil, err
	}
	return s.Bytes(), nil
}
