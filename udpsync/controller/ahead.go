// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package controller

import "time"

const (
	DefaultTargetFrameDiff = 1.5
	DefaultAheadAdjust     = 0.01
	DefaultSmoothing       = 0.1
)

// Ahead tunes how far ahead of the server the client runs, based on the frame diff reported
// by the server: how many frames ahead of the server's current frame the client's newest
// command arrived.
type Ahead struct {
	target    float64
	adjust    float64
	smoothing float64
	step      time.Duration
	lo, hi    time.Duration

	avg float64
	has bool
}

func NewAhead(step time.Duration, target, adjust float64, lo, hi time.Duration) *Ahead {
	if adjust <= 0 || adjust > 1 {
		adjust = DefaultAheadAdjust
	}
	return &Ahead{
		target:    target,
		adjust:    adjust,
		smoothing: DefaultSmoothing,
		step:      step,
		lo:        lo,
		hi:        hi,
	}
}

// Observe feeds a frame diff received from the server.
func (a *Ahead) Observe(frameDiff float64) {
	if !a.has {
		a.avg = frameDiff
		a.has = true
		return
	}
	a.avg += (frameDiff - a.avg) * a.smoothing
}

// Average returns the running average of the frame diff.
func (a *Ahead) Average() float64 {
	return a.avg
}

// Update returns the new client ahead delay. It moves the current value a small fraction
// toward the value that would have produced the target frame diff. The delay is only
// decreased while the connection is nominal.
func (a *Ahead) Update(current time.Duration, nominal bool) time.Duration {
	if !a.has {
		return current
	}

	desired := float64(current) + (a.target-a.avg)*float64(a.step)
	next := current + time.Duration((desired-float64(current))*a.adjust)

	if next < current && !nominal {
		return current
	}

	return min(max(next, a.lo), a.hi)
}
