// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package server runs the authoritative side of a session: a fixed step simulation fed by
// commands of the peers and replicated to them with snapshots.
package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marko-gacesa/udpsync/channel"
	"github.com/marko-gacesa/udpsync/udpsync"
	"github.com/marko-gacesa/udpsync/udpsync/clock"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/link"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/message/control"
	"github.com/marko-gacesa/udpsync/udpsync/message/input"
	"github.com/marko-gacesa/udpsync/udpsync/message/world"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
	"github.com/marko-gacesa/udpsync/udpsync/util"
	"golang.org/x/sync/errgroup"
)

// ******************************************************************************

var _ interface {
	// Start runs the tick loop. It's a blocking call. Cancel the context to abort it.
	Start(ctx context.Context) error

	// HandleIncomingMessage queues a packet received from the address. It never blocks.
	HandleIncomingMessage(data []byte, addr net.Addr)

	// Tick drains the queued packets and advances the simulation.
	Tick()

	// Peers returns information about all connected peers.
	Peers() []udpsync.PeerInfo
} = (*Server)(nil)

//******************************************************************************

// Sender delivers a packet to a peer's address.
type Sender interface {
	Send(data []byte, addr net.Addr) error
}

type packet struct {
	data []byte
	addr net.Addr
}

type Server struct {
	sender     Sender
	simulation sim.Simulation
	settings   settings

	queue *channel.Queue[packet]
	clock *clock.Clock

	peers    map[string]*peer
	ids      *entity.IDPool
	world    *entity.World
	state    []entity.State
	stream   *snapshot.Stream
	inputLog *sim.Log
	leaving  []sim.Input
	lastTick time.Time
	ticks    int

	started   atomic.Bool
	malformed int
	dropped   int

	infoMx sync.Mutex
	infos  []udpsync.PeerInfo

	packed []packet
	buffer []byte

	log *slog.Logger
}

// New creates a server that simulates the provided simulation. Listeners are attached to the
// server's entity world and receive link and unlink notifications as the simulation evolves.
func New(sender Sender, simulation sim.Simulation, listeners []entity.Listener, opts ...Option) *Server {
	s := &Server{
		sender:     sender,
		simulation: simulation,
		settings:   defaultSettings(),
		peers:      make(map[string]*peer),
		world:      entity.NewWorld(listeners...),
		log:        slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.queue = channel.NewQueue[packet](s.settings.queueSize)
	s.clock = clock.New(clock.RoleServer,
		clock.WithStep(s.settings.step),
		clock.WithMaxCatchUp(s.settings.maxCatchUp))
	// ids of departed peers are released only after their entities are removed
	s.ids = entity.NewIDPool(entity.ID(2 * s.settings.maxPeers))
	s.stream = snapshot.NewStream(s.settings.history)
	s.inputLog = sim.NewLog(s.settings.history)
	s.buffer = make([]byte, 0, message.MaxMessageSize)

	return s
}

func (s *Server) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.tickLoop(ctx)
	})

	g.Go(func() error {
		return s.peerReporter(ctx)
	})

	err := g.Wait()

	s.shutdown()

	if errors.Is(err, context.Canceled) {
		return nil
	}

	return err
}

func (s *Server) tickLoop(ctx context.Context) (err error) {
	defer util.RecoverErr(s.log, &err)

	// ticking twice per step keeps the simulation close to the real time
	ticker := time.NewTicker(s.settings.step / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

func (s *Server) peerReporter(ctx context.Context) error {
	ticker := time.NewTicker(3 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for _, info := range s.Peers() {
				s.log.Debug("peer",
					"token", info.Token,
					"name", info.Name,
					"state", info.State,
					"rtt", info.RTT,
					"loss", info.Loss,
					"filled", info.Filled)
			}
		}
	}
}

// HandleIncomingMessage queues the packet for the next tick. The data is copied.
func (s *Server) HandleIncomingMessage(data []byte, addr net.Addr) {
	if !s.queue.Push(packet{data: append([]byte(nil), data...), addr: addr}) {
		s.log.Warn("inbound queue full, dropped the oldest packet")
	}
}

func (s *Server) Tick() {
	s.tick(s.settings.now())
}

func (s *Server) tick(now time.Time) {
	var wallDelta time.Duration
	if !s.lastTick.IsZero() {
		wallDelta = now.Sub(s.lastTick)
	}
	s.lastTick = now

	s.packed = s.queue.Drain(s.packed[:0])
	for i := range s.packed {
		s.handlePacket(now, s.packed[i])
		s.packed[i] = packet{}
	}

	s.clock.Step(wallDelta, s.simulate)

	s.checkTimeouts(now)
	s.refreshInfo(now)
}

func (s *Server) handlePacket(now time.Time, pkt packet) {
	if len(pkt.data) > message.MaxMessageSize {
		s.dropped++
		s.log.Warn("dropped packet", "addr", pkt.addr.String(), "size", len(pkt.data), "err", ErrOversized)
		return
	}

	key := pkt.addr.String()

	p, ok := s.peers[key]
	if !ok {
		if len(pkt.data) < message.SizeOfHeader+1 {
			s.malformed++
			return
		}

		var err error
		p, err = s.openPeer(now, pkt.addr)
		if err != nil {
			s.dropped++
			s.log.Warn("rejected peer", "addr", key, "err", err)
			return
		}

		// only a packet carrying a valid Hello keeps the new peer
		defer func() {
			if p.stage == stageOpen && s.peers[key] == p {
				p.log.Debug("peer discarded")
				s.closePeer(p, udpsync.PeerLeft)
			}
		}()
	}

	r, err := p.link.Receive(pkt.data)
	if err != nil {
		s.malformed++
		p.log.Debug("failed to process packet", "err", err)
		return
	}

	p.lastReceive = now

	if r.Reliable != nil {
		s.handleControl(p, r.Reliable)
		if _, stillOpen := s.peers[key]; !stillOpen {
			return
		}
	}

	if r.Duplicate || len(r.Payload) == 0 {
		return
	}

	kind, _ := message.PeekKind(r.Payload)
	switch kind {
	case message.KindCommands:
		var pack input.Pack
		if _, err := pack.Get(r.Payload); err != nil {
			s.malformed++
			p.link.Reject(r.Sequence)
			p.log.Debug("malformed command pack", "err", err)
			return
		}
		for _, cmd := range pack.Commands {
			p.commands.Put(cmd)
		}
	default:
		s.malformed++
		p.link.Reject(r.Sequence)
		p.log.Debug("unexpected payload", "kind", kind)
	}
}

func (s *Server) openPeer(now time.Time, addr net.Addr) (*peer, error) {
	if len(s.peers) >= s.settings.maxPeers {
		return nil, ErrTooManyPeers
	}

	token := message.RandomToken()
	log := s.log.With("peer", token, "addr", addr.String())

	p := &peer{
		token:       token,
		addr:        addr,
		stage:       stageOpen,
		commands:    command.NewBuffer(s.settings.commandBuffer),
		lastReceive: now,
		log:         log,
	}

	p.link = link.New(link.SenderFunc(func(data []byte) error {
		return s.sender.Send(data, addr)
	}), link.WithLogger(log), link.WithTimeSource(s.settings.now))

	s.peers[addr.String()] = p

	log.Debug("peer opened")

	return p, nil
}

func (s *Server) handleControl(p *peer, data []byte) {
	msg, err := control.Parse(data)
	if err != nil {
		s.malformed++
		p.log.Debug("malformed control message", "err", err)
		return
	}

	switch m := msg.(type) {
	case *control.Hello:
		if p.stage != stageOpen {
			return
		}

		id, err := s.ids.Alloc()
		if err != nil {
			p.log.Warn("failed to allocate entity", "err", err)
			s.closePeer(p, udpsync.PeerLeft)
			return
		}

		p.name = control.TruncateName(m.Name)
		p.entity = id
		p.stage = stageJoining

		welcome := control.Welcome{
			Token:    p.token,
			EntityID: id,
			TickRate: uint16(time.Second / s.settings.step),
			Frame:    s.clock.Frame(),
		}
		if err := p.link.SetReliable(welcome.Put(nil)); err != nil {
			p.log.Error("failed to queue welcome", "err", err)
		}

		p.log.Info("peer joined", "name", p.name, "entity", id)
		s.notify(p, udpsync.PeerJoined)

	case *control.Bye:
		p.log.Info("peer left")
		s.closePeer(p, udpsync.PeerLeft)

	default:
		p.log.Debug("unexpected control message", "kind", msg.Kind())
	}
}

// closePeer removes the peer. Its entity is removed by the next simulated frame.
func (s *Server) closePeer(p *peer, event udpsync.PeerEvent) {
	delete(s.peers, p.addr.String())
	p.link.Close()

	switch p.stage {
	case stageJoined:
		s.leaving = append(s.leaving, sim.Input{
			Peer:   p.token,
			Entity: p.entity,
			Event:  sim.EventLeave,
		})
	case stageJoining:
		s.ids.Release(p.entity)
	}

	if p.stage != stageOpen {
		s.notify(p, event)
	}
}

func (s *Server) checkTimeouts(now time.Time) {
	for _, p := range s.sortedPeers() {
		if now.Sub(p.lastReceive) <= s.settings.timeout {
			continue
		}
		p.log.Info("peer timed out", "silence", now.Sub(p.lastReceive))
		s.closePeer(p, udpsync.PeerTimedOut)
	}
}

func (s *Server) notify(p *peer, event udpsync.PeerEvent) {
	if s.settings.peerFn == nil {
		return
	}
	defer util.Recover(p.log)
	s.settings.peerFn(p.info(s.settings.now()), event)
}

// simulate executes a single frame.
func (s *Server) simulate(frame uint32) {
	peers := s.sortedPeers()

	inputs := make([]sim.Input, 0, len(peers)+len(s.leaving))
	inputs = append(inputs, s.leaving...)

	for _, p := range peers {
		if p.stage == stageOpen {
			continue
		}

		cmd, status := p.commands.Take(frame)

		in := sim.Input{
			Peer:    p.token,
			Entity:  p.entity,
			Status:  status,
			Command: cmd,
		}
		if p.stage == stageJoining {
			in.Event = sim.EventJoin
			p.stage = stageJoined
		}

		inputs = append(inputs, in)
	}

	slices.SortStableFunc(inputs, func(a, b sim.Input) int {
		return cmp.Compare(a.Entity, b.Entity)
	})

	next := s.simulation.Step(frame, s.state, inputs)
	snap := snapshot.Capture(frame, s.clock.FrameTime(frame), snapshot.States(next))

	s.state = snap.Entities
	s.stream.Push(snap)
	s.inputLog.Put(frame, inputs)
	s.world.Apply(snap.Entities)

	for _, in := range s.leaving {
		s.ids.Release(in.Entity)
	}
	s.leaving = s.leaving[:0]

	if r := s.settings.recorder; r != nil {
		if err := r.Record(frame, inputs, snap); err != nil {
			s.log.Error("failed to record frame", "frame", frame, "err", err)
		}
	}

	s.ticks++

	if s.ticks%s.settings.snapshotEvery == 0 {
		s.broadcast(snap)
	}

	if n := s.settings.verifyEvery; n > 0 && s.ticks%n == 0 {
		s.verify(frame)
	}
}

func (s *Server) broadcast(snap *snapshot.Snapshot) {
	for _, p := range s.sortedPeers() {
		if p.stage == stageOpen {
			continue
		}

		pack := world.Pack{
			FrameDiff: float32(p.commands.FrameDiff(snap.Frame)),
			Snapshot:  *snap,
		}

		s.buffer = pack.Put(s.buffer[:0])
		if len(s.buffer) > message.MaxMessageSize-message.SizeOfHeader-8 {
			p.log.Warn("snapshot exceeds the message size", "frame", snap.Frame, "size", len(s.buffer))
		}

		if _, err := p.link.Send(s.buffer, snap.Frame); err != nil {
			p.log.Error("failed to send snapshot", "frame", snap.Frame, "err", err)
		}
	}
}

func (s *Server) verify(frame uint32) {
	depth := min(s.settings.verifyDepth, s.stream.Len()-1)
	if depth <= 0 || uint32(depth) > frame {
		return
	}

	err := sim.Verify(s.simulation, sim.StreamHistory(s.stream, s.inputLog), frame, depth)

	var errDivergence *sim.DivergenceError
	switch {
	case errors.As(err, &errDivergence):
		s.log.Warn("simulation diverged",
			"frame", errDivergence.Frame,
			"expected", fmt.Sprintf("%08x", errDivergence.Expected),
			"actual", fmt.Sprintf("%08x", errDivergence.Actual))
	case err != nil:
		s.log.Debug("verification skipped", "frame", frame, "err", err)
	}
}

func (s *Server) shutdown() {
	bye := (&control.Bye{}).Put(nil)
	for _, p := range s.sortedPeers() {
		if err := p.link.SetReliable(bye); err != nil {
			continue
		}
		if _, err := p.link.Send(nil, 0); err != nil {
			p.log.Debug("failed to send bye", "err", err)
		}
		p.link.Close()
	}
}

func (s *Server) sortedPeers() []*peer {
	peers := make([]*peer, 0, len(s.peers))
	for _, p := range s.peers {
		peers = append(peers, p)
	}
	slices.SortFunc(peers, func(a, b *peer) int {
		if c := cmp.Compare(a.entity, b.entity); c != 0 {
			return c
		}
		return cmp.Compare(a.token, b.token)
	})
	return peers
}

func (s *Server) refreshInfo(now time.Time) {
	infos := make([]udpsync.PeerInfo, 0, len(s.peers))
	for _, p := range s.sortedPeers() {
		if p.stage == stageOpen {
			continue
		}
		infos = append(infos, p.info(now))
	}

	s.infoMx.Lock()
	s.infos = infos
	s.infoMx.Unlock()
}

// Peers returns the state of all peers as of the last tick. It's safe to call from any goroutine.
func (s *Server) Peers() []udpsync.PeerInfo {
	s.infoMx.Lock()
	defer s.infoMx.Unlock()
	return slices.Clone(s.infos)
}

// World returns the server's entity world. It must be accessed only from the goroutine that calls Tick.
func (s *Server) World() *entity.World {
	return s.world
}

// Frame returns the frame the next tick will simulate.
func (s *Server) Frame() uint32 {
	return s.clock.Frame()
}

// Malformed returns the number of dropped malformed packets.
func (s *Server) Malformed() int {
	return s.malformed
}
