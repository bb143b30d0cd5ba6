// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package controller

import "time"

const (
	DefaultMinRelax = time.Second
	DefaultMaxRelax = 32 * time.Second
)

// Hysteresis tracks whether the connection is nominal or degraded.
// Degradation is reported immediately. Returning to nominal requires the signal to stay good
// for the relaxation time T. T doubles when the connection degrades again shortly after
// it recovered and halves after a long nominal period.
type Hysteresis struct {
	minT, maxT time.Duration
	t          time.Duration

	now          time.Duration
	degraded     bool
	recovered    bool
	recoveredAt  time.Duration
	goodSince    time.Duration
	goodStreak   bool
	nominalSince time.Duration
}

func NewHysteresis(minT, maxT time.Duration) *Hysteresis {
	if minT <= 0 {
		minT = DefaultMinRelax
	}
	if maxT < minT {
		maxT = minT
	}
	return &Hysteresis{
		minT: minT,
		maxT: maxT,
		t:    minT,
	}
}

// Update advances the time by dt and feeds the current signal. It returns true if degraded.
func (h *Hysteresis) Update(dt time.Duration, bad bool) bool {
	h.now += max(dt, 0)

	switch {
	case bad:
		h.goodStreak = false
		if !h.degraded {
			h.degraded = true
			if h.recovered && h.now-h.recoveredAt < h.t {
				h.t = min(2*h.t, h.maxT)
			}
		}

	case h.degraded:
		if !h.goodStreak {
			h.goodStreak = true
			h.goodSince = h.now
		}
		if h.now-h.goodSince >= h.t {
			h.degraded = false
			h.recovered = true
			h.recoveredAt = h.now
			h.nominalSince = h.now
		}

	default:
		if h.now-h.nominalSince >= 4*h.t {
			h.t = max(h.t/2, h.minT)
			h.nominalSince = h.now
		}
	}

	return h.degraded
}

func (h *Hysteresis) Degraded() bool {
	return h.degraded
}

// Relax returns the current relaxation time.
func (h *Hysteresis) Relax() time.Duration {
	return h.t
}
