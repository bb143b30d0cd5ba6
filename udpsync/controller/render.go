// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package controller

import "time"

const (
	DefaultRenderPeriod = 10 * time.Second
	DefaultRenderAdjust = 0.25
)

// Render tunes how far behind the estimated server time the client renders.
type Render struct {
	targetMargin time.Duration
	period       time.Duration
	adjust       float64
	lo, hi       time.Duration

	elapsed   time.Duration
	marginSum time.Duration
	marginN   int
}

func NewRender(targetMargin, period time.Duration, lo, hi time.Duration) *Render {
	if period <= 0 {
		period = DefaultRenderPeriod
	}
	return &Render{
		targetMargin: targetMargin,
		period:       period,
		adjust:       DefaultRenderAdjust,
		lo:           lo,
		hi:           hi,
	}
}

// ObserveMargin feeds how long before it was needed for rendering a snapshot arrived.
// Negative values mean the snapshot arrived late.
func (r *Render) ObserveMargin(margin time.Duration) {
	r.marginSum += margin
	r.marginN++
}

// Update returns the new render behind delay.
//
// A shortfall (the render time is past the newest snapshot) raises the delay at once:
// to the current actual distance between the render time and the server time plus the shortfall.
// Otherwise, once per period, the average arrival margin is compared to the target margin
// and the delay is moved a fraction of the difference. The delay is only decreased while
// the connection is nominal.
func (r *Render) Update(dt, current, actual, shortfall time.Duration, nominal bool) time.Duration {
	if shortfall > 0 {
		r.reset()
		return min(max(current, actual+shortfall, r.lo), r.hi)
	}

	r.elapsed += max(dt, 0)
	if r.elapsed < r.period {
		return current
	}

	defer r.reset()

	if r.marginN == 0 {
		return current
	}

	avg := r.marginSum / time.Duration(r.marginN)
	next := current - time.Duration(float64(avg-r.targetMargin)*r.adjust)

	if next < current && !nominal {
		return current
	}

	return min(max(next, r.lo), r.hi)
}

func (r *Render) reset() {
	r.elapsed = 0
	r.marginSum = 0
	r.marginN = 0
}
