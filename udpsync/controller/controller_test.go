// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package controller

import (
	"testing"
	"time"
)

func TestHysteresis(t *testing.T) {
	const dt = 100 * time.Millisecond

	h := NewHysteresis(time.Second, 8*time.Second)

	run := func(n int, bad bool) bool {
		var degraded bool
		for range n {
			degraded = h.Update(dt, bad)
		}
		return degraded
	}

	steps := []struct {
		name        string
		n           int
		bad         bool
		expDegraded bool
		expRelax    time.Duration
	}{
		{name: "degrade-immediately", n: 1, bad: true, expDegraded: true, expRelax: time.Second},
		{name: "wait-relax", n: 10, bad: false, expDegraded: true, expRelax: time.Second},
		{name: "recover", n: 1, bad: false, expDegraded: false, expRelax: time.Second},
		{name: "flap", n: 1, bad: true, expDegraded: true, expRelax: 2 * time.Second},
		{name: "wait-longer", n: 20, bad: false, expDegraded: true, expRelax: 2 * time.Second},
		{name: "recover-again", n: 1, bad: false, expDegraded: false, expRelax: 2 * time.Second},
		{name: "sustained-nominal", n: 80, bad: false, expDegraded: false, expRelax: time.Second},
	}

	for _, step := range steps {
		if degraded := run(step.n, step.bad); degraded != step.expDegraded {
			t.Errorf("%s: degraded mismatch: expected=%t got=%t", step.name, step.expDegraded, degraded)
		}
		if relax := h.Relax(); relax != step.expRelax {
			t.Errorf("%s: relax mismatch: expected=%s got=%s", step.name, step.expRelax, relax)
		}
	}
}

func TestHysteresis_MaxRelax(t *testing.T) {
	h := NewHysteresis(time.Second, 2*time.Second)

	for range 5 {
		h.Update(0, true)
		h.Update(0, false)
		h.Update(3*time.Second, false)
	}

	if h.Relax() != 2*time.Second {
		t.Errorf("relax should be capped, got %s", h.Relax())
	}
}

func TestAhead(t *testing.T) {
	const step = 50 * time.Millisecond

	tests := []struct {
		name      string
		frameDiff float64
		nominal   bool
		exp       time.Duration
	}{
		{name: "on-target", frameDiff: 1.5, nominal: true, exp: 100 * time.Millisecond},
		{name: "too-late", frameDiff: 0.5, nominal: true, exp: 100*time.Millisecond + 500*time.Microsecond},
		{name: "too-early", frameDiff: 3.5, nominal: true, exp: 99 * time.Millisecond},
		{name: "too-early-degraded", frameDiff: 3.5, nominal: false, exp: 100 * time.Millisecond},
		{name: "too-late-degraded", frameDiff: -0.5, nominal: false, exp: 101 * time.Millisecond},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			a := NewAhead(step, DefaultTargetFrameDiff, DefaultAheadAdjust, 0, time.Second)
			a.Observe(test.frameDiff)
			if got := a.Update(100*time.Millisecond, test.nominal); got != test.exp {
				t.Errorf("expected=%s got=%s", test.exp, got)
			}
		})
	}

	a := NewAhead(step, DefaultTargetFrameDiff, DefaultAheadAdjust, 0, time.Second)
	if got := a.Update(100*time.Millisecond, true); got != 100*time.Millisecond {
		t.Errorf("without observations the delay must not change: %s", got)
	}
}

func TestRender(t *testing.T) {
	r := NewRender(50*time.Millisecond, 10*time.Second, 0, time.Second)

	if got := r.Update(time.Second, 100*time.Millisecond, 120*time.Millisecond, 30*time.Millisecond, true); got != 150*time.Millisecond {
		t.Errorf("shortfall should raise the delay to 150ms, got %s", got)
	}

	for range 10 {
		r.ObserveMargin(200 * time.Millisecond)
	}

	if got := r.Update(5*time.Second, 150*time.Millisecond, 150*time.Millisecond, 0, true); got != 150*time.Millisecond {
		t.Errorf("delay should not change before the period ends, got %s", got)
	}

	if got := r.Update(5*time.Second, 150*time.Millisecond, 150*time.Millisecond, 0, false); got != 150*time.Millisecond {
		t.Errorf("delay should not decrease while degraded, got %s", got)
	}

	for range 10 {
		r.ObserveMargin(200 * time.Millisecond)
	}
	r.Update(5*time.Second, 150*time.Millisecond, 150*time.Millisecond, 0, true)
	got := r.Update(5*time.Second, 150*time.Millisecond, 150*time.Millisecond, 0, true)
	if exp := 150*time.Millisecond - 37500*time.Microsecond; got != exp {
		t.Errorf("expected=%s got=%s", exp, got)
	}
}

func TestSync(t *testing.T) {
	const dt = 50 * time.Millisecond

	s := NewSync(100*time.Millisecond, 100*time.Millisecond, WithStep(dt))

	out := s.Update(Input{Dt: dt, FrameDiff: 1.5, HasFrameDiff: true, Behind: 100 * time.Millisecond})
	if out.Degraded || out.ClientAhead != 100*time.Millisecond || out.RenderBehind != 100*time.Millisecond {
		t.Errorf("steady state should not change anything: %+v", out)
	}

	out = s.Update(Input{Dt: dt, Shortfall: 20 * time.Millisecond, Behind: 110 * time.Millisecond})
	if !out.Degraded {
		t.Errorf("shortfall should degrade")
	}
	if out.RenderBehind != 130*time.Millisecond {
		t.Errorf("render behind should be raised to 130ms, got %s", out.RenderBehind)
	}

	out = s.Update(Input{Dt: dt, Loss: 0.5, Behind: 130 * time.Millisecond})
	if !out.Degraded {
		t.Errorf("high loss should keep the state degraded")
	}
}
