// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package client runs the client side of a session: it sends commands ahead of the server,
// keeps a buffer of received snapshots and renders the world slightly in the past,
// with the client's own entity predicted.
package client

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marko-gacesa/udpsync/channel"
	"github.com/marko-gacesa/udpsync/sequence"
	"github.com/marko-gacesa/udpsync/udpsync/clock"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/controller"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/link"
	"github.com/marko-gacesa/udpsync/udpsync/message"
	"github.com/marko-gacesa/udpsync/udpsync/message/control"
	"github.com/marko-gacesa/udpsync/udpsync/message/input"
	"github.com/marko-gacesa/udpsync/udpsync/message/world"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
	"github.com/marko-gacesa/udpsync/udpsync/util"
	"golang.org/x/sync/errgroup"
)

// ******************************************************************************

var _ interface {
	// Start runs the tick loop. It's a blocking call. Cancel the context to leave the session.
	Start(ctx context.Context) error

	// HandleIncomingMessage queues a packet received from the server. It never blocks.
	HandleIncomingMessage(data []byte)

	// Tick drains the queued packets, advances the clock and sends commands.
	Tick()

	// WorldState returns the world as it should be presented.
	WorldState() []entity.State

	// Done returns a channel that is closed when the session ends.
	Done() <-chan struct{}
} = (*Client)(nil)

//******************************************************************************

// Sender delivers a packet to the server.
type Sender interface {
	Send([]byte) error
}

const predictionDepth = 128

// Status is a copy of the session state.
type Status struct {
	Token     message.Token
	Entity    entity.ID
	Joined    bool
	Synced    bool
	Degraded  bool
	Clock     clock.State
	Link      link.Stats
	FrameDiff float64
	Malformed int
}

type Client struct {
	settings settings

	queue     *channel.Queue[[]byte]
	link      *link.Channel
	clock     *clock.Clock
	sync      *controller.Sync
	commands  *command.Sender
	history   *sequence.History[command.Command]
	snapshots *snapshot.Buffer
	world     *entity.World

	token    message.Token
	entity   entity.ID
	welcomed bool

	lastTick     time.Time
	lastReceive  time.Time
	lastSend     time.Time
	newestFrame  uint32
	hasNewest    bool
	frameDiff    float64
	hasFrameDiff bool
	margins      []time.Duration
	malformed    int

	inputMx sync.Mutex
	input   command.Input

	stateMx   sync.Mutex
	rendered  []entity.State
	predicted entity.State
	status    Status

	started  atomic.Bool
	done     chan struct{}
	doneOnce sync.Once
	err      error

	packets [][]byte
	buffer  []byte

	log *slog.Logger
}

func New(sender Sender, opts ...Option) *Client {
	c := &Client{
		settings: defaultSettings(),
		done:     make(chan struct{}),
		log:      slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.queue = channel.NewQueue[[]byte](c.settings.queueSize)
	c.link = link.New(sender, link.WithLogger(c.log), link.WithTimeSource(c.settings.now))
	c.clock = clock.New(clock.RoleClient, append([]clock.Option{
		clock.WithStep(c.settings.step),
		clock.WithClientAhead(c.settings.clientAhead),
		clock.WithRenderBehind(c.settings.renderBehind),
	}, c.settings.clockOpts...)...)
	c.sync = controller.NewSync(c.settings.clientAhead, c.settings.renderBehind, append([]controller.Option{
		controller.WithStep(c.settings.step),
		controller.WithLogger(c.log),
	}, c.settings.syncOpts...)...)
	c.commands = command.NewSender(c.settings.senderCapacity)
	c.history = sequence.NewHistory[command.Command](predictionDepth)
	c.snapshots = snapshot.NewBuffer(c.settings.snapshotBuffer, c.settings.maxExtrapolation)
	c.world = entity.NewWorld(c.settings.listeners...)
	c.buffer = make([]byte, 0, message.MaxMessageSize)

	hello := control.Hello{Name: c.settings.name}
	if err := c.link.SetReliable(hello.Put(nil)); err != nil {
		c.log.Error("failed to queue hello", "err", err)
	}

	return c
}

func (c *Client) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		defer util.RecoverErr(c.log, &err)

		// ticking twice per step keeps the command production close to the client time
		ticker := time.NewTicker(c.settings.step / 2)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-c.done:
				return c.err
			case <-ticker.C:
				c.Tick()
			}
		}
	})

	err := g.Wait()

	if errors.Is(err, context.Canceled) {
		c.Close()
		return nil
	}

	return err
}

// HandleIncomingMessage queues the packet for the next tick. The data is copied.
func (c *Client) HandleIncomingMessage(data []byte) {
	if !c.queue.Push(append([]byte(nil), data...)) {
		c.log.Warn("inbound queue full, dropped the oldest packet")
	}
}

// SetInput sets the input used for the following frames. It's safe to call from any goroutine.
func (c *Client) SetInput(in command.Input) {
	c.inputMx.Lock()
	c.input = in
	c.inputMx.Unlock()
}

func (c *Client) Tick() {
	c.tick(c.settings.now())
}

func (c *Client) tick(now time.Time) {
	select {
	case <-c.done:
		return
	default:
	}

	var wallDelta time.Duration
	if c.lastTick.IsZero() {
		c.lastReceive = now
	} else {
		wallDelta = now.Sub(c.lastTick)
	}
	c.lastTick = now

	c.packets = c.queue.Drain(c.packets[:0])
	for i, data := range c.packets {
		c.handlePacket(now, data)
		c.packets[i] = nil
	}

	select {
	case <-c.done:
		return
	default:
	}

	var newest uint32
	ticks := c.clock.Step(wallDelta, func(frame uint32) {
		cmd := command.Command{Frame: frame, Input: c.sampleInput(frame)}
		c.commands.Push(cmd)
		c.history.Put(frame, cmd)
		newest = frame
	})

	switch {
	case ticks > 0:
		c.sendCommands(now, newest)
	case !c.clock.Synced() && now.Sub(c.lastSend) >= c.settings.step:
		// keeps the hello flowing until the server answers
		c.send(now, nil, 0)
	}

	if c.clock.Synced() {
		c.render(wallDelta)
	}

	c.updateStatus()

	if silence := now.Sub(c.lastReceive); silence > c.settings.timeout {
		c.log.Warn("server timed out", "silence", silence)
		c.finish(ErrTimeout)
	}
}

func (c *Client) handlePacket(now time.Time, data []byte) {
	if len(data) > message.MaxMessageSize {
		c.malformed++
		return
	}

	r, err := c.link.Receive(data)
	if err != nil {
		c.malformed++
		c.log.Debug("failed to process packet", "err", err)
		return
	}

	c.lastReceive = now

	if r.HasAckedTag {
		c.commands.Ack(r.AckedTag)
	}

	if r.Reliable != nil {
		c.handleControl(r.Reliable)
	}

	if r.Duplicate || len(r.Payload) == 0 {
		return
	}

	kind, _ := message.PeekKind(r.Payload)
	if kind != message.KindSnapshot {
		c.malformed++
		c.link.Reject(r.Sequence)
		c.log.Debug("unexpected payload", "kind", kind)
		return
	}

	var pack world.Pack
	if _, err := pack.Get(r.Payload); err != nil {
		c.malformed++
		c.link.Reject(r.Sequence)
		c.log.Debug("malformed snapshot pack", "err", err)
		return
	}

	snap := &pack.Snapshot

	if r.RTT > 0 {
		c.clock.ObserveServerTime(snap.Time, r.RTT)
	}

	if !c.snapshots.Insert(snap) {
		return
	}

	if c.clock.Synced() {
		c.margins = append(c.margins, snap.Time-c.clock.State().Render)
	}

	if !c.hasNewest || snap.Frame > c.newestFrame {
		c.newestFrame = snap.Frame
		c.hasNewest = true
		c.frameDiff = float64(pack.FrameDiff)
		c.hasFrameDiff = true
	}
}

func (c *Client) handleControl(data []byte) {
	msg, err := control.Parse(data)
	if err != nil {
		c.malformed++
		c.log.Debug("malformed control message", "err", err)
		return
	}

	switch m := msg.(type) {
	case *control.Welcome:
		if c.welcomed {
			return
		}

		c.token = m.Token
		c.entity = m.EntityID
		c.welcomed = true

		c.log = c.log.With("token", m.Token)
		c.log.Info("joined", "entity", m.EntityID, "frame", m.Frame)

		if hz := int(time.Second / c.settings.step); int(m.TickRate) != hz {
			c.log.Warn("tick rate mismatch", "server", m.TickRate, "client", hz)
		}

	case *control.Bye:
		c.log.Info("server closed the session")
		c.finish(ErrServerClosed)

	default:
		c.log.Debug("unexpected control message", "kind", msg.Kind())
	}
}

func (c *Client) sampleInput(frame uint32) command.Input {
	if c.settings.input != nil {
		return c.settings.input(frame)
	}

	c.inputMx.Lock()
	defer c.inputMx.Unlock()

	return c.input
}

// sendCommands sends all unacknowledged commands. The packet is tagged with the newest frame,
// so an acknowledgment of the packet acknowledges all commands up to it.
func (c *Client) sendCommands(now time.Time, newest uint32) {
	pack := input.Pack{Commands: c.commands.Pending()}
	c.buffer = pack.Put(c.buffer[:0])
	c.send(now, c.buffer, newest)
}

func (c *Client) send(now time.Time, payload []byte, tag uint32) {
	c.lastSend = now
	if _, err := c.link.Send(payload, tag); err != nil {
		c.log.Error("failed to send packet", "err", err)
	}
}

func (c *Client) render(wallDelta time.Duration) {
	state := c.clock.State()
	sample := c.snapshots.Sample(state.Render)
	if !sample.Valid {
		return
	}

	entities := slices.Clone(sample.Entities)

	var predicted entity.State
	if c.welcomed && c.settings.predictor != nil {
		predicted = c.predict()
		if predicted != nil {
			for i, e := range entities {
				if e.ID() == c.entity {
					entities[i] = predicted
					break
				}
			}
		}
	}

	c.world.Apply(entities)

	out := c.sync.Update(controller.Input{
		Dt:           wallDelta,
		FrameDiff:    c.frameDiff,
		HasFrameDiff: c.hasFrameDiff,
		Margins:      c.margins,
		Shortfall:    sample.Shortfall,
		Behind:       state.ServerEstimate - state.Render,
		Loss:         c.link.Stats().PacketLossRatio,
	})

	c.hasFrameDiff = false
	c.margins = c.margins[:0]

	c.clock.SetClientAhead(out.ClientAhead)
	c.clock.SetRenderBehind(out.RenderBehind)

	c.stateMx.Lock()
	c.rendered = entities
	c.predicted = predicted
	c.status.Degraded = out.Degraded
	c.stateMx.Unlock()
}

// predict rebuilds the own entity from the newest authoritative state and the commands
// for the frames after it.
func (c *Client) predict() entity.State {
	snap, ok := c.snapshots.Newest()
	if !ok {
		return nil
	}

	base, ok := snap.Find(c.entity)
	if !ok {
		return nil
	}

	var commands []command.Command
	c.history.Iterate(func(frame uint32, cmd command.Command) bool {
		if frame > snap.Frame {
			commands = append(commands, cmd)
		}
		return true
	})

	return c.settings.predictor.Predict(base, commands)
}

// WorldState returns the entities interpolated at the render time, with the own entity
// replaced by its prediction at the client time. It's safe to call from any goroutine.
func (c *Client) WorldState() []entity.State {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()
	return slices.Clone(c.rendered)
}

// Predicted returns the predicted state of the own entity.
func (c *Client) Predicted() (entity.State, bool) {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()
	return c.predicted, c.predicted != nil
}

// Status returns the state of the session as of the last tick. It's safe to call from any goroutine.
func (c *Client) Status() Status {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()
	return c.status
}

func (c *Client) updateStatus() {
	c.stateMx.Lock()
	defer c.stateMx.Unlock()

	c.status.Token = c.token
	c.status.Entity = c.entity
	c.status.Joined = c.welcomed
	c.status.Clock = c.clock.State()
	c.status.Synced = c.clock.Synced()
	c.status.Link = c.link.Stats()
	c.status.FrameDiff = c.sync.FrameDiff()
	c.status.Malformed = c.malformed
}

// Close leaves the session. The server is notified with a Bye message.
// It must not be called concurrently with Tick; a client run by Start is closed by cancelling the context.
func (c *Client) Close() {
	if c.link.Closed() {
		return
	}

	if err := c.link.SetReliable((&control.Bye{}).Put(nil)); err == nil {
		if _, err := c.link.Send(nil, 0); err != nil {
			c.log.Debug("failed to send bye", "err", err)
		}
	}

	c.link.Close()
	c.finish(ErrClosed)
}

func (c *Client) finish(err error) {
	c.doneOnce.Do(func() {
		c.err = err
		close(c.done)
	})
}

func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the reason the session ended, or nil if it is still running.
func (c *Client) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}
