// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package link implements a channel with sequence numbers, acknowledgments,
// statistics and a single reliable message slot over an unreliable transport.
package link

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/marko-gacesa/udpsync/sequence"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

// Sender delivers a packet to the peer. Delivery is not guaranteed.
type Sender interface {
	Send([]byte) error
}

// SenderFunc adapts a plain function to Sender.
type SenderFunc func([]byte) error

func (f SenderFunc) Send(data []byte) error {
	return f(data)
}

const (
	flagReliable = 1 << 0
	flagAck      = 1 << 1
)

const (
	ringSize  = 1024
	ackWindow = 32
)

// Channel wraps payloads with sequence and acknowledgment headers.
// It is not safe for concurrent use: it belongs to the tick loop of a single peer.
type Channel struct {
	sender Sender
	window time.Duration
	now    func() time.Time
	log    *slog.Logger

	created     time.Time
	lastReceive time.Time
	closed      bool

	next     sequence.Sequence
	hasSent  bool
	inflight [ringSize]*sentPacket
	outgoing []*sentPacket
	incoming []receivedPacket
	scan     int

	remote     sequence.Sequence
	remoteBits uint32
	hasRemote  bool
	undo       receiveUndo

	reliable      []byte
	reliableSeq   sequence.Sequence // the sequence of the reliable message itself
	reliableFirst sequence.Sequence // the packet sequence of its first transmission
	reliableSent  bool

	remoteReliable    sequence.Sequence
	hasRemoteReliable bool

	malformed int
}

// receiveUndo holds the receive window as it was before the latest packet was marked.
type receiveUndo struct {
	valid       bool
	seq         sequence.Sequence
	remote      sequence.Sequence
	remoteBits  uint32
	hasRemote   bool
	lastReceive time.Time
}

// Receipt is the result of processing an incoming packet.
type Receipt struct {
	// Sequence and Tag are the values from the peer's header.
	Sequence sequence.Sequence
	Tag      uint32

	// Duplicate is true if the packet has been received before or is too old to tell.
	Duplicate bool

	// Acks are sequences of own packets acknowledged for the first time by this packet.
	Acks []sequence.Sequence

	// AckedTag is the highest tag among newly acknowledged packets.
	AckedTag    uint32
	HasAckedTag bool

	// RTT is the round trip time of the packet the header acknowledges as the latest, if newly acknowledged.
	RTT time.Duration

	// Reliable is a reliable message delivered for the first time.
	Reliable []byte

	Payload []byte
}

func New(sender Sender, opts ...Option) *Channel {
	return newChannel(time.Time{}, sender, opts...)
}

func newChannel(now time.Time, sender Sender, opts ...Option) *Channel {
	c := &Channel{
		sender: sender,
		window: DefaultStatsWindow,
		now:    time.Now,
		log:    slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if now.IsZero() {
		now = c.now()
	}

	c.created = now
	c.lastReceive = now

	return c
}

// Send sends the payload in a new packet and returns the sequence assigned to it.
// The tag is reported back through Receipt.AckedTag when the packet is acknowledged.
func (c *Channel) Send(payload []byte, tag uint32) (sequence.Sequence, error) {
	return c.send(c.now(), payload, tag)
}

func (c *Channel) send(now time.Time, payload []byte, tag uint32) (sequence.Sequence, error) {
	if c.closed {
		return 0, ErrClosed
	}

	seq := c.next
	c.next = seq.Next()
	c.hasSent = true

	header := message.Header{
		Sequence: seq,
		Tag:      tag,
	}

	var flags byte
	if c.hasRemote {
		flags |= flagAck
		header.Ack = c.remote
		header.AckBits = c.remoteBits
	}
	if c.reliable != nil {
		flags |= flagReliable
		if !c.reliableSent {
			c.reliableFirst = seq
			c.reliableSent = true
		}
	}

	buf := make([]byte, 0, message.SizeOfHeader+1+3+len(c.reliable)+len(payload))
	buf = header.Put(buf)

	s := message.NewSerializer(buf)
	s.Put8(flags)
	if flags&flagReliable != 0 {
		s.PutSequence(c.reliableSeq)
		s.PutBytes(c.reliable)
	}
	buf = append(s.Bytes(), payload...)

	p := &sentPacket{
		seq:  uint16(seq),
		tag:  tag,
		at:   now,
		size: len(buf),
	}
	c.inflight[int(seq)%ringSize] = p
	c.outgoing = append(c.outgoing, p)
	c.trim(now)

	if err := c.sender.Send(buf); err != nil {
		return seq, fmt.Errorf("failed to send packet %d: %w", seq, err)
	}

	return seq, nil
}

// SetReliable puts the message into the reliable slot, replacing any previous one.
// The message is included in every outgoing packet until the peer acknowledges
// a packet newer than the first one that carried it.
func (c *Channel) SetReliable(msg []byte) error {
	if c.closed {
		return ErrClosed
	}
	if len(msg) > math.MaxUint8 {
		return ErrTooLarge
	}

	c.reliable = append([]byte{}, msg...)
	c.reliableSeq = c.reliableSeq.Next()
	c.reliableSent = false

	return nil
}

// HasReliable returns true while the reliable slot holds an unacknowledged message.
func (c *Channel) HasReliable() bool {
	return c.reliable != nil
}

// Receive processes an incoming packet.
// A malformed packet is dropped and counted; the returned error wraps ErrMalformed.
func (c *Channel) Receive(packet []byte) (Receipt, error) {
	return c.receive(c.now(), packet)
}

func (c *Channel) receive(now time.Time, packet []byte) (Receipt, error) {
	if c.closed {
		return Receipt{}, ErrClosed
	}

	var header message.Header
	rest, err := header.Get(packet)
	if err != nil {
		c.malformed++
		return Receipt{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	var (
		flags  byte
		relSeq sequence.Sequence
		rel    []byte
	)

	d := message.NewDeserializer(rest)
	d.Get8(&flags)
	if flags&flagReliable != 0 {
		d.GetSequence(&relSeq)
		d.GetBytes(&rel)
	}
	if err := d.Error(); err != nil {
		c.malformed++
		return Receipt{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	c.undo = receiveUndo{
		valid:       true,
		seq:         header.Sequence,
		remote:      c.remote,
		remoteBits:  c.remoteBits,
		hasRemote:   c.hasRemote,
		lastReceive: c.lastReceive,
	}

	r := Receipt{
		Sequence:  header.Sequence,
		Tag:       header.Tag,
		Duplicate: !c.markReceived(header.Sequence),
		Payload:   d.Bytes(),
	}

	c.lastReceive = now
	c.incoming = append(c.incoming, receivedPacket{at: now, size: len(packet)})
	c.trim(now)

	if flags&flagAck != 0 {
		c.processAcks(now, &header, &r)
	}

	if flags&flagReliable != 0 && (!c.hasRemoteReliable || sequence.Newer(relSeq, c.remoteReliable)) {
		c.remoteReliable = relSeq
		c.hasRemoteReliable = true
		r.Reliable = rel
	}

	return r, nil
}

// Reject drops the most recently received packet after its payload failed validation.
// The packet is removed from the receive window, so it is never acknowledged to the peer,
// and it is counted as malformed. Acknowledgments carried by its header stay processed.
// It has no effect if seq is not the sequence of the latest received packet.
func (c *Channel) Reject(seq sequence.Sequence) {
	if !c.undo.valid || c.undo.seq != seq {
		return
	}

	c.remote = c.undo.remote
	c.remoteBits = c.undo.remoteBits
	c.hasRemote = c.undo.hasRemote
	c.lastReceive = c.undo.lastReceive
	c.undo.valid = false
	c.malformed++
}

// markReceived updates the receive window. It returns false for a duplicate.
func (c *Channel) markReceived(seq sequence.Sequence) bool {
	if !c.hasRemote {
		c.remote = seq
		c.remoteBits = 0
		c.hasRemote = true
		return true
	}

	if sequence.Newer(seq, c.remote) {
		shift := sequence.Distance(seq, c.remote)
		if shift > ackWindow {
			c.remoteBits = 0
		} else {
			c.remoteBits = c.remoteBits<<shift | 1<<(shift-1)
		}
		c.remote = seq
		return true
	}

	if seq == c.remote {
		return false
	}

	dist := sequence.Distance(c.remote, seq)
	if dist <= 0 || dist > ackWindow {
		return false
	}

	bit := uint32(1) << (dist - 1)
	if c.remoteBits&bit != 0 {
		return false
	}
	c.remoteBits |= bit

	return true
}

func (c *Channel) processAcks(now time.Time, h *message.Header, r *Receipt) {
	if !c.hasSent || sequence.Newer(h.Ack, c.next-1) {
		// acknowledges a packet that was never sent
		return
	}

	c.ack(now, h.Ack, r, true)
	for i := 1; i <= ackWindow; i++ {
		if seq := h.Ack - sequence.Sequence(i); h.Acked(seq) {
			c.ack(now, seq, r, false)
		}
	}

	if c.reliable != nil && c.reliableSent && sequence.Newer(h.Ack, c.reliableFirst) {
		c.reliable = nil
		c.reliableSent = false
	}

	// packets that dropped out of the acknowledgment window are lost
	for ; c.scan < len(c.outgoing); c.scan++ {
		p := c.outgoing[c.scan]
		if sequence.Distance(h.Ack, sequence.Sequence(p.seq)) <= ackWindow {
			break
		}
		if !p.acked {
			p.lost = true
		}
	}
}

func (c *Channel) ack(now time.Time, seq sequence.Sequence, r *Receipt, latest bool) {
	p := c.inflight[int(seq)%ringSize]
	if p == nil || p.seq != uint16(seq) || p.acked {
		return
	}

	p.acked = true
	p.lost = false
	p.rtt = now.Sub(p.at)

	r.Acks = append(r.Acks, seq)
	if !r.HasAckedTag || p.tag > r.AckedTag {
		r.AckedTag = p.tag
		r.HasAckedTag = true
	}
	if latest {
		r.RTT = p.rtt
	}
}

// Stats returns statistics computed from the packet history of the statistics window.
func (c *Channel) Stats() Stats {
	return c.stats(c.now())
}

// SinceLastReceive returns time passed since the last valid packet was received.
func (c *Channel) SinceLastReceive() time.Duration {
	return c.sinceLastReceive(c.now())
}

func (c *Channel) sinceLastReceive(now time.Time) time.Duration {
	return now.Sub(c.lastReceive)
}

// Close stops the channel. The reliable slot is discarded and nothing is sent anymore.
func (c *Channel) Close() {
	c.closed = true
	c.reliable = nil
}

func (c *Channel) Closed() bool {
	return c.closed
}
