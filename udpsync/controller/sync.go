// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package controller contains the feedback loops that keep the client ahead delay
// and the render behind delay tuned to the network conditions.
package controller

import (
	"log/slog"
	"time"
)

const DefaultLossThreshold = 0.1

// Input is what the client observed during a tick.
type Input struct {
	Dt time.Duration

	// FrameDiff is the newest frame diff reported by the server, valid if HasFrameDiff.
	FrameDiff    float64
	HasFrameDiff bool

	// Margins are arrival margins of snapshots received during the tick.
	Margins []time.Duration

	// Shortfall is how far the render time is past the newest snapshot.
	Shortfall time.Duration

	// Behind is the actual distance between the server time estimate and the render time.
	Behind time.Duration

	Loss float64
}

// Output is the delays the clock should use.
type Output struct {
	ClientAhead  time.Duration
	RenderBehind time.Duration
	Degraded     bool
}

// Sync bundles the hysteresis and both delay controllers.
type Sync struct {
	hysteresis *Hysteresis
	ahead      *Ahead
	render     *Render

	lossThreshold float64

	clientAhead  time.Duration
	renderBehind time.Duration

	log *slog.Logger
}

type Option func(*syncConfig)

type syncConfig struct {
	step            time.Duration
	targetFrameDiff float64
	aheadAdjust     float64
	aheadMin        time.Duration
	aheadMax        time.Duration
	renderPeriod    time.Duration
	renderMargin    time.Duration
	behindMin       time.Duration
	behindMax       time.Duration
	minRelax        time.Duration
	maxRelax        time.Duration
	lossThreshold   float64
	log             *slog.Logger
}

func WithStep(step time.Duration) Option {
	return func(c *syncConfig) {
		if step > 0 {
			c.step = step
		}
	}
}

func WithTargetFrameDiff(target float64) Option {
	return func(c *syncConfig) {
		c.targetFrameDiff = target
	}
}

func WithAheadAdjust(adjust float64) Option {
	return func(c *syncConfig) {
		c.aheadAdjust = adjust
	}
}

func WithRenderPeriod(period time.Duration) Option {
	return func(c *syncConfig) {
		c.renderPeriod = period
	}
}

// WithRenderMargin sets how early, on average, snapshots should arrive before they are rendered.
func WithRenderMargin(margin time.Duration) Option {
	return func(c *syncConfig) {
		c.renderMargin = margin
	}
}

func WithAheadLimits(lo, hi time.Duration) Option {
	return func(c *syncConfig) {
		c.aheadMin, c.aheadMax = lo, hi
	}
}

func WithBehindLimits(lo, hi time.Duration) Option {
	return func(c *syncConfig) {
		c.behindMin, c.behindMax = lo, hi
	}
}

func WithRelax(lo, hi time.Duration) Option {
	return func(c *syncConfig) {
		c.minRelax, c.maxRelax = lo, hi
	}
}

func WithLossThreshold(threshold float64) Option {
	return func(c *syncConfig) {
		c.lossThreshold = threshold
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(c *syncConfig) {
		c.log = log
	}
}

// NewSync returns the controller starting from the provided delays.
func NewSync(clientAhead, renderBehind time.Duration, opts ...Option) *Sync {
	cfg := syncConfig{
		step:            50 * time.Millisecond,
		targetFrameDiff: DefaultTargetFrameDiff,
		aheadAdjust:     DefaultAheadAdjust,
		aheadMin:        0,
		aheadMax:        time.Second,
		renderPeriod:    DefaultRenderPeriod,
		renderMargin:    -1,
		behindMin:       0,
		behindMax:       time.Second,
		minRelax:        DefaultMinRelax,
		maxRelax:        DefaultMaxRelax,
		lossThreshold:   DefaultLossThreshold,
		log:             slog.Default(),
	}

	for _, opt := range opts {
		opt(&cfg)
	}

	if cfg.renderMargin < 0 {
		cfg.renderMargin = cfg.step
	}

	return &Sync{
		hysteresis:    NewHysteresis(cfg.minRelax, cfg.maxRelax),
		ahead:         NewAhead(cfg.step, cfg.targetFrameDiff, cfg.aheadAdjust, cfg.aheadMin, cfg.aheadMax),
		render:        NewRender(cfg.renderMargin, cfg.renderPeriod, cfg.behindMin, cfg.behindMax),
		lossThreshold: cfg.lossThreshold,
		clientAhead:   clientAhead,
		renderBehind:  renderBehind,
		log:           cfg.log,
	}
}

// Update runs once per client tick.
func (s *Sync) Update(in Input) Output {
	if in.HasFrameDiff {
		s.ahead.Observe(in.FrameDiff)
	}
	for _, m := range in.Margins {
		s.render.ObserveMargin(m)
	}

	bad := in.Shortfall > 0 || in.Loss > s.lossThreshold || (s.ahead.has && s.ahead.avg < 0)

	wasDegraded := s.hysteresis.Degraded()
	degraded := s.hysteresis.Update(in.Dt, bad)
	if degraded != wasDegraded {
		s.log.Info("sync state changed",
			"degraded", degraded,
			"relax", s.hysteresis.Relax(),
			"frame_diff", s.ahead.Average(),
			"loss", in.Loss)
	}

	nominal := !degraded
	s.clientAhead = s.ahead.Update(s.clientAhead, nominal)
	s.renderBehind = s.render.Update(in.Dt, s.renderBehind, in.Behind, in.Shortfall, nominal)

	return Output{
		ClientAhead:  s.clientAhead,
		RenderBehind: s.renderBehind,
		Degraded:     degraded,
	}
}

func (s *Sync) FrameDiff() float64 {
	return s.ahead.Average()
}
