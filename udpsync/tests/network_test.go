// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package tests_test

import (
	"bytes"
	"net"
	"slices"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/client"
	"github.com/marko-gacesa/udpsync/udpsync/link"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/server"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

// Network is a simulated network with a fixed latency and a configurable packet loss.
// Time is simulated too: nothing happens between calls of Run.
type Network struct {
	now     time.Time
	latency time.Duration
	step    time.Duration

	inFlight []delivery
	drop     func(d delivery) bool
	dropped  int

	srv     *server.Server
	clients []*client.Client
	addrs   []net.Addr
}

type delivery struct {
	at       time.Time
	data     []byte
	toServer bool
	addr     net.Addr
}

// header decodes the packet header.
func (d delivery) header() message.Header {
	var h message.Header
	_, _ = h.Get(d.data)
	return h
}

func NewNetwork(latency time.Duration) *Network {
	return &Network{
		now:     time.Unix(10_000, 0),
		latency: latency,
		step:    10 * time.Millisecond,
	}
}

func (n *Network) Now() time.Time {
	return n.now
}

// Send is the server's sender.
func (n *Network) Send(data []byte, addr net.Addr) error {
	n.inFlight = append(n.inFlight, delivery{
		at:   n.now.Add(n.latency),
		data: bytes.Clone(data),
		addr: addr,
	})
	return nil
}

// ClientSender returns the sender of a new client node.
func (n *Network) ClientSender() (link.SenderFunc, net.Addr) {
	addr := &net.UDPAddr{IP: net.IPv4(10, 0, 0, byte(len(n.addrs)+1)), Port: 4000}
	n.addrs = append(n.addrs, addr)

	return func(data []byte) error {
		n.inFlight = append(n.inFlight, delivery{
			at:       n.now.Add(n.latency),
			data:     bytes.Clone(data),
			toServer: true,
			addr:     addr,
		})
		return nil
	}, addr
}

func (n *Network) SetServer(srv *server.Server) {
	n.srv = srv
}

func (n *Network) AddClient(cli *client.Client) {
	n.clients = append(n.clients, cli)
}

// Run advances the time in small steps. In each step due packets are delivered,
// then the server and all clients tick. It stops early if until returns true.
func (n *Network) Run(d time.Duration, until func() bool) {
	end := n.now.Add(d)
	for n.now.Before(end) {
		n.now = n.now.Add(n.step)

		n.deliver()

		n.srv.Tick()
		for _, cli := range n.clients {
			cli.Tick()
		}

		if until != nil && until() {
			return
		}
	}
}

func (n *Network) deliver() {
	var due []delivery
	n.inFlight = slices.DeleteFunc(n.inFlight, func(d delivery) bool {
		if d.at.After(n.now) {
			return false
		}
		due = append(due, d)
		return true
	})

	for _, d := range due {
		if n.drop != nil && n.drop(d) {
			n.dropped++
			continue
		}

		if d.toServer {
			n.srv.HandleIncomingMessage(d.data, d.addr)
			continue
		}

		for i, addr := range n.addrs {
			if addr.String() == d.addr.String() {
				n.clients[i].HandleIncomingMessage(d.data)
			}
		}
	}
}

// InputRecorder keeps inputs of every simulated frame.
type InputRecorder struct {
	inputs map[uint32][]sim.Input
	last   uint32
}

func NewInputRecorder() *InputRecorder {
	return &InputRecorder{inputs: map[uint32][]sim.Input{}}
}

func (r *InputRecorder) Record(frame uint32, inputs []sim.Input, _ *snapshot.Snapshot) error {
	r.inputs[frame] = slices.Clone(inputs)
	r.last = frame
	return nil
}
