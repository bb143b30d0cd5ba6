// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package clock keeps the time axes of a session: real time, simulation time and render time,
// and on a client also the client time that runs ahead of the server.
//
// All axes of a client are expressed on the server's timeline: the simulation frame F
// starts at F*step and its snapshot is stamped with (F+1)*step.
package clock

import (
	"math"
	"time"
)

type Role byte

const (
	RoleServer Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleServer:
		return "server"
	case RoleClient:
		return "client"
	}
	return "unknown"
}

// State is a copy of all time axes.
type State struct {
	Real           time.Duration
	Sim            time.Duration
	Render         time.Duration
	Client         time.Duration
	ServerEstimate time.Duration
	ClientAhead    time.Duration
	RenderBehind   time.Duration
	Frame          uint32
}

// Clock advances the time axes of a session. It is not safe for concurrent use.
type Clock struct {
	role Role

	step          time.Duration
	maxWallDelta  time.Duration
	maxCatchUp    int
	maxSimLag     time.Duration
	renderBound   float64
	clientBound   float64
	snapThreshold time.Duration
	horizon       time.Duration

	wall   time.Duration
	real   time.Duration
	sim    time.Duration
	render time.Duration
	synced bool

	renderRate float64
	clientRate float64

	boostBound float64
	boostUntil time.Duration

	estimator    *Estimator
	clientAhead  time.Duration
	renderBehind time.Duration

	skipped int
	snaps   int
}

func New(role Role, opts ...Option) *Clock {
	c := &Clock{
		role:          role,
		step:          DefaultStep,
		maxWallDelta:  DefaultMaxWallDelta,
		maxCatchUp:    DefaultMaxCatchUp,
		maxSimLag:     -1,
		renderBound:   DefaultRenderBound,
		clientBound:   DefaultClientBound,
		snapThreshold: DefaultSnapThreshold,
		horizon:       DefaultHorizon,
		renderRate:    1,
		clientRate:    1,
		estimator:     NewEstimator(DefaultAging),
		clientAhead:   DefaultClientAhead,
		renderBehind:  DefaultRenderBehind,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.maxSimLag < 0 {
		c.maxSimLag = 2 * c.step
	}

	c.synced = role == RoleServer

	return c
}

// Step advances the clock by the wall time passed since the previous call.
// The function tick is called once for every whole simulation frame that became due.
// It returns the number of executed ticks.
func (c *Clock) Step(wallDelta time.Duration, tick func(frame uint32)) int {
	wallDelta = min(max(wallDelta, 0), c.maxWallDelta)
	c.wall += wallDelta

	if !c.synced {
		return 0
	}

	// real time
	if c.role == RoleClient {
		c.stepClient(wallDelta)
	} else {
		c.real += wallDelta
	}

	// simulation ticks
	n := 0
	for c.sim+c.step <= c.real {
		if n == c.maxCatchUp {
			c.resyncSim()
			break
		}

		frame := c.frame()
		if tick != nil {
			tick(frame)
		}
		c.sim += c.step
		n++
	}

	// render time
	if c.role == RoleClient {
		c.stepRender(wallDelta)
	} else {
		c.render = c.sim
	}

	return n
}

// stepClient moves the client time toward the estimated server time plus the client ahead delay.
func (c *Clock) stepClient(wallDelta time.Duration) {
	estimate, _ := c.estimator.Estimate(c.wall)
	target := estimate + c.clientAhead
	diff := target - (c.real + wallDelta)

	if abs(diff) > c.snapThreshold {
		c.real = target
		c.sim = c.align(target)
		c.clientRate = 1
		c.snaps++
		return
	}

	c.clientRate = c.rate(diff, c.clientBound)
	c.real += scale(wallDelta, c.clientRate)
}

// stepRender moves the render time toward the estimated server time minus the render behind delay.
func (c *Clock) stepRender(wallDelta time.Duration) {
	estimate, _ := c.estimator.Estimate(c.wall)
	target := max(estimate-c.renderBehind, 0)
	diff := target - (c.render + wallDelta)

	// render time never moves backward: a large lag is snapped, a large lead is slowed down at the bound
	if diff > c.snapThreshold {
		c.render = target
		c.renderRate = 1
		c.snaps++
		return
	}

	bound := c.renderBound
	if c.wall < c.boostUntil {
		bound = max(bound, c.boostBound)
	}

	c.renderRate = c.rate(diff, bound)
	c.render += scale(wallDelta, c.renderRate)
}

// rate returns the rate of advance that would remove the error within the horizon, limited to 1±bound.
func (c *Clock) rate(diff time.Duration, bound float64) float64 {
	correction := float64(diff) / float64(c.horizon)
	return 1 + math.Max(-bound, math.Min(bound, correction))
}

// resyncSim gives up on catching up and moves the simulation to at most maxSimLag behind real time.
func (c *Clock) resyncSim() {
	limit := c.align(c.real - c.maxSimLag)
	if limit > c.sim {
		c.skipped += int((limit - c.sim) / c.step)
		c.sim = limit
	}
}

func (c *Clock) align(t time.Duration) time.Duration {
	if t < 0 {
		return 0
	}
	return t - t%c.step
}

func (c *Clock) frame() uint32 {
	return uint32(c.sim / c.step)
}

// ObserveServerTime offers a server timestamp received with the given round trip time.
// It returns true if the estimate of the server time has been updated.
// The first accepted sample synchronizes a client: the client time jumps to its target
// and the render time to its target.
func (c *Clock) ObserveServerTime(serverTime, rtt time.Duration) bool {
	if !c.estimator.Observe(c.wall, serverTime, rtt) {
		return false
	}

	if c.role == RoleClient && !c.synced {
		estimate, _ := c.estimator.Estimate(c.wall)
		c.real = estimate + c.clientAhead
		c.sim = c.align(c.real)
		c.render = max(estimate-c.renderBehind, 0)
		c.synced = true
	}

	return true
}

// Boost temporarily allows the render time to change its rate by up to the bound.
// It is used for deliberate effects, such as catching up after a pause. Simulation time is not affected.
func (c *Clock) Boost(bound float64, d time.Duration) {
	if bound <= 0 || d <= 0 {
		return
	}
	c.boostBound = min(bound, 0.95)
	c.boostUntil = c.wall + d
}

func (c *Clock) SetClientAhead(d time.Duration) {
	c.clientAhead = max(d, 0)
}

func (c *Clock) SetRenderBehind(d time.Duration) {
	c.renderBehind = max(d, 0)
}

func (c *Clock) ClientAhead() time.Duration  { return c.clientAhead }
func (c *Clock) RenderBehind() time.Duration { return c.renderBehind }
func (c *Clock) TickDuration() time.Duration { return c.step }

// Synced returns true on a server and on a client that has accepted a server timestamp.
func (c *Clock) Synced() bool {
	return c.synced
}

// Frame returns the frame the next simulation tick will execute.
func (c *Clock) Frame() uint32 {
	return c.frame()
}

// FrameTime returns the server time stamp of the end of the frame.
func (c *Clock) FrameTime(frame uint32) time.Duration {
	return time.Duration(frame+1) * c.step
}

// ServerEstimate returns the estimated current server time.
func (c *Clock) ServerEstimate() time.Duration {
	if c.role == RoleServer {
		return c.real
	}
	estimate, _ := c.estimator.Estimate(c.wall)
	return estimate
}

// Skipped returns the number of frames dropped because the simulation could not catch up.
func (c *Clock) Skipped() int {
	return c.skipped
}

// Snaps returns how many times a time axis jumped instead of dilating.
func (c *Clock) Snaps() int {
	return c.snaps
}

func (c *Clock) State() State {
	return State{
		Real:           c.real,
		Sim:            c.sim,
		Render:         c.render,
		Client:         c.real,
		ServerEstimate: c.ServerEstimate(),
		ClientAhead:    c.clientAhead,
		RenderBehind:   c.renderBehind,
		Frame:          c.frame(),
	}
}

func scale(d time.Duration, rate float64) time.Duration {
	return time.Duration(math.Round(float64(d) * rate))
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
