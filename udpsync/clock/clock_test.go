// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package clock

import (
	"reflect"
	"testing"
	"time"
)

func TestClock_ServerStep(t *testing.T) {
	c := New(RoleServer, WithStep(50*time.Millisecond))

	var frames []uint32
	tick := func(frame uint32) {
		frames = append(frames, frame)
	}

	tests := []struct {
		wall     time.Duration
		expTicks int
	}{
		{wall: 30 * time.Millisecond, expTicks: 0},
		{wall: 30 * time.Millisecond, expTicks: 1},
		{wall: 100 * time.Millisecond, expTicks: 2},
		{wall: 0, expTicks: 0},
		{wall: -time.Second, expTicks: 0},
		{wall: 40 * time.Millisecond, expTicks: 1},
	}

	for i, test := range tests {
		if n := c.Step(test.wall, tick); n != test.expTicks {
			t.Errorf("step %d: ticks mismatch: expected=%d got=%d", i, test.expTicks, n)
		}

		s := c.State()
		if s.Sim > s.Real {
			t.Errorf("step %d: sim=%s is ahead of real=%s", i, s.Sim, s.Real)
		}
		if s.Render != s.Sim {
			t.Errorf("step %d: server render=%s should equal sim=%s", i, s.Render, s.Sim)
		}
	}

	if exp := []uint32{0, 1, 2, 3}; !reflect.DeepEqual(exp, frames) {
		t.Errorf("frames mismatch: expected=%v got=%v", exp, frames)
	}

	if c.FrameTime(3) != 200*time.Millisecond {
		t.Errorf("frame time mismatch: %s", c.FrameTime(3))
	}
}

func TestClock_CatchUpLimit(t *testing.T) {
	c := New(RoleServer,
		WithStep(10*time.Millisecond),
		WithMaxCatchUp(3),
		WithMaxWallDelta(time.Second),
		WithMaxSimLag(20*time.Millisecond))

	if n := c.Step(200*time.Millisecond, nil); n != 3 {
		t.Errorf("expected 3 ticks, got %d", n)
	}

	if f := c.Frame(); f != 18 {
		t.Errorf("simulation should be resynchronized to frame 18, got %d", f)
	}
	if s := c.Skipped(); s != 15 {
		t.Errorf("expected 15 skipped frames, got %d", s)
	}

	if n := c.Step(0, nil); n != 2 {
		t.Errorf("expected the remaining 2 ticks, got %d", n)
	}
}

func TestClock_WallClamp(t *testing.T) {
	c := New(RoleServer, WithStep(50*time.Millisecond), WithMaxWallDelta(100*time.Millisecond))

	c.Step(time.Hour, nil)

	if real := c.State().Real; real != 100*time.Millisecond {
		t.Errorf("wall delta not clamped: %s", real)
	}
}

func TestClock_ClientUnsynced(t *testing.T) {
	c := New(RoleClient)

	if n := c.Step(time.Second, func(uint32) { t.Error("tick before sync") }); n != 0 {
		t.Errorf("expected no ticks, got %d", n)
	}
	if c.Synced() {
		t.Errorf("should not be synced")
	}
}

func TestClock_ClientSync(t *testing.T) {
	c := New(RoleClient,
		WithStep(50*time.Millisecond),
		WithClientAhead(120*time.Millisecond),
		WithRenderBehind(100*time.Millisecond))

	if !c.ObserveServerTime(10*time.Second, 40*time.Millisecond) {
		t.Fatalf("first sample should be accepted")
	}

	s := c.State()
	if s.ServerEstimate != 10*time.Second+20*time.Millisecond {
		t.Errorf("estimate mismatch: %s", s.ServerEstimate)
	}
	if s.Client != s.ServerEstimate+120*time.Millisecond {
		t.Errorf("client time mismatch: %s", s.Client)
	}
	if s.Render != s.ServerEstimate-100*time.Millisecond {
		t.Errorf("render time mismatch: %s", s.Render)
	}
	if s.Frame != 202 {
		t.Errorf("frame mismatch: %d", s.Frame)
	}

	var frames []uint32
	c.Step(100*time.Millisecond, func(frame uint32) {
		frames = append(frames, frame)
	})

	if exp := []uint32{202, 203}; !reflect.DeepEqual(exp, frames) {
		t.Errorf("frames mismatch: expected=%v got=%v", exp, frames)
	}
}

func TestClock_RenderConvergence(t *testing.T) {
	const step = 50 * time.Millisecond

	c := New(RoleClient, WithStep(step), WithRenderBound(0.05))
	c.ObserveServerTime(10*time.Second, 0)

	// start 100ms behind the target
	c.render -= 100 * time.Millisecond

	target := func() time.Duration {
		return c.ServerEstimate() - c.RenderBehind()
	}

	prev := c.State().Render
	for i := range 200 {
		c.Step(step, nil)

		render := c.State().Render
		if render < prev {
			t.Fatalf("tick %d: render time moved backward: %s -> %s", i, prev, render)
		}
		if advance := render - prev; advance > step+step/20+1 {
			t.Fatalf("tick %d: render advanced by %s, more than 5%% over the step", i, advance)
		}
		if i == 0 && target()-render < 90*time.Millisecond {
			t.Fatalf("render time jumped instead of dilating")
		}
		prev = render
	}

	if diff := abs(target() - prev); diff > time.Millisecond {
		t.Errorf("render time did not converge: diff=%s", diff)
	}
	if c.Snaps() != 0 {
		t.Errorf("unexpected snaps: %d", c.Snaps())
	}
}

func TestClock_RenderNeverBackward(t *testing.T) {
	const step = 50 * time.Millisecond

	c := New(RoleClient, WithStep(step))
	c.ObserveServerTime(10*time.Second, 0)
	c.Step(step, nil)

	// the estimate of the server time jumps back by more than the snap threshold
	if !c.ObserveServerTime(5*time.Second, 0) {
		t.Fatalf("sample should be accepted")
	}

	prev := c.State().Render
	for i := range 20 {
		c.Step(step, nil)

		render := c.State().Render
		if render < prev {
			t.Fatalf("tick %d: render time moved backward: %s -> %s", i, prev, render)
		}
		if advance := render - prev; advance >= step || advance < step-step/20-1 {
			t.Fatalf("tick %d: render should advance at the slowest rate, advanced %s", i, advance)
		}
		prev = render
	}
}

func TestClock_Boost(t *testing.T) {
	const step = 50 * time.Millisecond

	run := func(boost bool) time.Duration {
		c := New(RoleClient, WithStep(step))
		c.ObserveServerTime(10*time.Second, 0)
		c.render -= 500 * time.Millisecond
		if boost {
			c.Boost(0.5, time.Second)
		}
		for range 10 {
			c.Step(step, nil)
		}
		return c.ServerEstimate() - c.RenderBehind() - c.State().Render
	}

	if normal, boosted := run(false), run(true); boosted >= normal {
		t.Errorf("boost should converge faster: normal=%s boosted=%s", normal, boosted)
	}
}

func TestClock_ClientAhead(t *testing.T) {
	const step = 50 * time.Millisecond

	c := New(RoleClient, WithStep(step), WithClientAhead(100*time.Millisecond))
	c.ObserveServerTime(10*time.Second, 0)

	// small change of the target dilates client time
	c.SetClientAhead(150 * time.Millisecond)
	before := c.State().Client
	c.Step(step, nil)
	if advance := c.State().Client - before; advance != step+step/50 {
		t.Errorf("client time should advance 2%% faster, advanced %s", advance)
	}

	// large change snaps
	c.SetClientAhead(3 * time.Second)
	c.Step(step, nil)
	s := c.State()
	if s.Client != s.ServerEstimate+3*time.Second {
		t.Errorf("client time should snap to the target: client=%s estimate=%s", s.Client, s.ServerEstimate)
	}
	if s.Sim > s.Client {
		t.Errorf("sim=%s is ahead of client=%s", s.Sim, s.Client)
	}
	if c.Snaps() != 1 {
		t.Errorf("expected one snap, got %d", c.Snaps())
	}
}

func TestEstimator(t *testing.T) {
	e := NewEstimator(0.01)

	if _, ok := e.Estimate(0); ok {
		t.Errorf("estimate without samples")
	}

	tests := []struct {
		name        string
		wall        time.Duration
		serverTime  time.Duration
		rtt         time.Duration
		expAccepted bool
		expEstimate time.Duration
	}{
		{
			name:        "first",
			wall:        time.Second,
			serverTime:  5 * time.Second,
			rtt:         100 * time.Millisecond,
			expAccepted: true,
			expEstimate: 5*time.Second + 50*time.Millisecond,
		},
		{
			name:        "noisy",
			wall:        time.Second + 500*time.Millisecond,
			serverTime:  7 * time.Second,
			rtt:         300 * time.Millisecond,
			expAccepted: false,
			expEstimate: 5*time.Second + 550*time.Millisecond,
		},
		{
			name:        "better",
			wall:        2 * time.Second,
			serverTime:  6*time.Second - 10*time.Millisecond,
			rtt:         60 * time.Millisecond,
			expAccepted: true,
			expEstimate: 6*time.Second + 20*time.Millisecond,
		},
		{
			name:        "aged",
			wall:        12 * time.Second,
			serverTime:  16 * time.Second,
			rtt:         150 * time.Millisecond,
			expAccepted: true,
			expEstimate: 16*time.Second + 75*time.Millisecond,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if accepted := e.Observe(test.wall, test.serverTime, test.rtt); accepted != test.expAccepted {
				t.Errorf("accepted mismatch: expected=%t got=%t", test.expAccepted, accepted)
			}
			if estimate, _ := e.Estimate(test.wall); estimate != test.expEstimate {
				t.Errorf("estimate mismatch: expected=%s got=%s", test.expEstimate, estimate)
			}
		})
	}
}
