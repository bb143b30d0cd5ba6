// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package udpsync

import (
	"net"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

type PeerState byte

const (
	PeerStateNew     PeerState = 0
	PeerStateGood    PeerState = 1
	PeerStateLagging PeerState = 2
	PeerStateLost    PeerState = 3
)

func (s PeerState) String() string {
	switch s {
	case PeerStateNew:
		return "New"
	case PeerStateGood:
		return "Good"
	case PeerStateLagging:
		return "Lagging"
	case PeerStateLost:
		return "Lost"
	default:
		return "?"
	}
}

const (
	// LaggingLatency is compared with the round trip time, which includes the wait for the next tick.
	LaggingLatency = 250 * time.Millisecond
	LaggingSilence = 500 * time.Millisecond
	LostSilence    = 3 * time.Second
)

// PeerStateOf classifies a peer by its round trip time and the time since its last packet.
func PeerStateOf(latency, silence time.Duration) PeerState {
	switch {
	case silence > LostSilence:
		return PeerStateLost
	case silence > LaggingSilence, latency > LaggingLatency:
		return PeerStateLagging
	default:
		return PeerStateGood
	}
}

type PeerInfo struct {
	Token  message.Token
	Name   string
	Addr   net.Addr
	Entity entity.ID
	State  PeerState
	RTT    time.Duration
	Loss   float64

	// Filled is the number of frames for which the peer's command was missing and had to be filled.
	Filled int
}

type PeerEvent byte

const (
	PeerJoined PeerEvent = iota
	PeerLeft
	PeerTimedOut
)

func (e PeerEvent) String() string {
	switch e {
	case PeerJoined:
		return "Joined"
	case PeerLeft:
		return "Left"
	case PeerTimedOut:
		return "TimedOut"
	default:
		return "?"
	}
}
