// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package link

import "time"

// Stats describes the link during the statistics window.
type Stats struct {
	Sent  int
	Acked int

	// Lost is the number of sent packets that dropped out of the acknowledgment window unacknowledged.
	Lost int

	Received int

	// Malformed is the total number of dropped packets that could not be parsed.
	Malformed int

	AverageRTT        time.Duration
	PacketLossRatio   float64
	BytesInPerSecond  float64
	BytesOutPerSecond float64
}

type sentPacket struct {
	seq   uint16
	tag   uint32
	at    time.Time
	size  int
	acked bool
	lost  bool
	rtt   time.Duration
}

type receivedPacket struct {
	at   time.Time
	size int
}

func (c *Channel) trim(now time.Time) {
	limit := now.Add(-c.window)

	n := 0
	for n < len(c.outgoing) && c.outgoing[n].at.Before(limit) {
		n++
	}
	if n > 0 {
		c.outgoing = append(c.outgoing[:0], c.outgoing[n:]...)
		c.scan = max(0, c.scan-n)
	}

	n = 0
	for n < len(c.incoming) && c.incoming[n].at.Before(limit) {
		n++
	}
	if n > 0 {
		c.incoming = append(c.incoming[:0], c.incoming[n:]...)
	}
}

func (c *Channel) stats(now time.Time) Stats {
	c.trim(now)

	var (
		s        Stats
		rttSum   time.Duration
		bytesOut int
		bytesIn  int
	)

	for _, p := range c.outgoing {
		s.Sent++
		bytesOut += p.size
		if p.acked {
			s.Acked++
			rttSum += p.rtt
		} else if p.lost {
			s.Lost++
		}
	}

	for _, p := range c.incoming {
		s.Received++
		bytesIn += p.size
	}

	s.Malformed = c.malformed

	if s.Acked > 0 {
		s.AverageRTT = rttSum / time.Duration(s.Acked)
	}

	if s.Sent > 0 {
		s.PacketLossRatio = 1 - float64(s.Acked)/float64(s.Sent)
	}

	span := min(c.window, now.Sub(c.created))
	if span > 0 {
		s.BytesOutPerSecond = float64(bytesOut) / span.Seconds()
		s.BytesInPerSecond = float64(bytesIn) / span.Seconds()
	}

	return s
}
