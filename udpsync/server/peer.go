// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package server

import (
	"log/slog"
	"net"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/link"
	"github.com/marko-gacesa/udpsync/udpsync/message"
)

type peerStage byte

const (
	// stageOpen is a peer whose first packet is being processed.
	// It is discarded unless the packet carries a Hello.
	stageOpen peerStage = iota

	// stageJoining is a peer with an entity id that will be spawned by the next tick.
	stageJoining

	// stageJoined is a peer whose entity exists in the simulation.
	stageJoined
)

type peer struct {
	token  message.Token
	addr   net.Addr
	name   string
	entity entity.ID
	stage  peerStage

	link     *link.Channel
	commands *command.Buffer

	lastReceive time.Time

	log *slog.Logger
}

func (p *peer) info(now time.Time) udpsync.PeerInfo {
	stats := p.link.Stats()
	return udpsync.PeerInfo{
		Token:  p.token,
		Name:   p.name,
		Addr:   p.addr,
		Entity: p.entity,
		State:  udpsync.PeerStateOf(stats.AverageRTT, now.Sub(p.lastReceive)),
		RTT:    stats.AverageRTT,
		Loss:   stats.PacketLossRatio,
		Filled: p.commands.Filled(),
	}
}
