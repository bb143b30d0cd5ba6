// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

import (
	"encoding/binary"
	"io"

	"github.com/marko-gacesa/udpsync/sequence"
)

// Header starts every packet.
type Header struct {
	// Sequence is the sender's sequence number of this packet.
	Sequence sequence.Sequence

	// Ack is the latest sequence number the sender has received from the peer.
	Ack sequence.Sequence

	// AckBits has bit i set if the sequence Ack-1-i has been received.
	AckBits uint32

	// Tag is a caller defined value attached to the packet.
	Tag uint32
}

const SizeOfHeader = 2 + 2 + 4 + 4

var _ interface {
	Putter
	Getter
} = (*Header)(nil)

func (h *Header) Put(buf []byte) []byte {
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.Sequence))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(h.Ack))
	buf = binary.LittleEndian.AppendUint32(buf, h.AckBits)
	buf = binary.LittleEndian.AppendUint32(buf, h.Tag)
	return buf
}

func (h *Header) Get(buf []byte) ([]byte, error) {
	if len(buf) < SizeOfHeader {
		return nil, io.ErrUnexpectedEOF
	}
	h.Sequence = sequence.Sequence(binary.LittleEndian.Uint16(buf[0:2]))
	h.Ack = sequence.Sequence(binary.LittleEndian.Uint16(buf[2:4]))
	h.AckBits = binary.LittleEndian.Uint32(buf[4:8])
	h.Tag = binary.LittleEndian.Uint32(buf[8:12])
	return buf[SizeOfHeader:], nil
}

// Acked reports whether the header acknowledges the sequence s.
func (h *Header) Acked(s sequence.Sequence) bool {
	if s == h.Ack {
		return true
	}
	d := sequence.Distance(h.Ack, s)
	if d < 1 || d > 32 {
		return false
	}
	return h.AckBits&(1<<(d-1)) != 0
}
