// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package clock

import "time"

const (
	DefaultStep          = 50 * time.Millisecond
	DefaultMaxWallDelta  = 250 * time.Millisecond
	DefaultMaxCatchUp    = 5
	DefaultRenderBound   = 0.05
	DefaultClientBound   = 0.02
	DefaultSnapThreshold = time.Second
	DefaultHorizon       = 500 * time.Millisecond
	DefaultClientAhead   = 100 * time.Millisecond
	DefaultRenderBehind  = 100 * time.Millisecond
)

type Option func(*Clock)

// WithStep sets the duration of a simulation tick.
func WithStep(step time.Duration) Option {
	return func(c *Clock) {
		if step > 0 {
			c.step = step
		}
	}
}

// WithTickRate sets the number of simulation ticks per second.
func WithTickRate(hz int) Option {
	return func(c *Clock) {
		if hz > 0 {
			c.step = time.Second / time.Duration(hz)
		}
	}
}

// WithMaxWallDelta limits how much wall time a single Step accepts. Longer stalls are forgotten.
func WithMaxWallDelta(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.maxWallDelta = d
		}
	}
}

// WithMaxCatchUp limits the number of simulation ticks executed by a single Step.
func WithMaxCatchUp(n int) Option {
	return func(c *Clock) {
		if n > 0 {
			c.maxCatchUp = n
		}
	}
}

// WithMaxSimLag sets how far behind real time the simulation may stay after a capped catch-up.
func WithMaxSimLag(d time.Duration) Option {
	return func(c *Clock) {
		if d >= 0 {
			c.maxSimLag = d
		}
	}
}

// WithRenderBound sets the maximum relative change of the render time rate.
func WithRenderBound(bound float64) Option {
	return func(c *Clock) {
		if bound > 0 && bound < 1 {
			c.renderBound = bound
		}
	}
}

// WithClientBound sets the maximum relative change of the client time rate.
func WithClientBound(bound float64) Option {
	return func(c *Clock) {
		if bound > 0 && bound < 1 {
			c.clientBound = bound
		}
	}
}

// WithSnapThreshold sets the error above which a time axis jumps to its target instead of dilating.
func WithSnapThreshold(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.snapThreshold = d
		}
	}
}

// WithHorizon sets the time in which an error would be removed if the rates were not bounded.
func WithHorizon(d time.Duration) Option {
	return func(c *Clock) {
		if d > 0 {
			c.horizon = d
		}
	}
}

func WithClientAhead(d time.Duration) Option {
	return func(c *Clock) {
		c.clientAhead = max(d, 0)
	}
}

func WithRenderBehind(d time.Duration) Option {
	return func(c *Clock) {
		c.renderBehind = max(d, 0)
	}
}

// WithAging sets the aging rate of the server time estimator.
func WithAging(aging float64) Option {
	return func(c *Clock) {
		c.estimator = NewEstimator(aging)
	}
}
