// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package client

import (
	"log/slog"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/clock"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/controller"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/message/control"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultQueueSize = 256
)

// Predictor applies commands to the client's own entity ahead of the server.
type Predictor interface {
	Predict(base entity.State, commands []command.Command) entity.State
}

type settings struct {
	name             string
	step             time.Duration
	timeout          time.Duration
	queueSize        int
	senderCapacity   int
	snapshotBuffer   int
	maxExtrapolation time.Duration
	clientAhead      time.Duration
	renderBehind     time.Duration
	clockOpts        []clock.Option
	syncOpts         []controller.Option
	predictor        Predictor
	listeners        []entity.Listener
	input            func(frame uint32) command.Input
	now              func() time.Time
}

type Option func(*Client)

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithName sets the name sent to the server in the Hello message.
// A name longer than control.MaxNameLength bytes is truncated.
func WithName(name string) Option {
	return func(c *Client) {
		c.settings.name = control.TruncateName(name)
	}
}

func WithTickRate(hz int) Option {
	return func(c *Client) {
		if hz > 0 {
			c.settings.step = time.Second / time.Duration(hz)
		}
	}
}

// WithTimeout sets how long the server can stay silent before the session ends.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.settings.timeout = d
		}
	}
}

func WithQueueSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.settings.queueSize = n
		}
	}
}

// WithCommandRedundancy sets the maximum number of unacknowledged commands kept and resent in every packet.
func WithCommandRedundancy(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.settings.senderCapacity = n
		}
	}
}

func WithSnapshotBuffer(capacity int, maxExtrapolation time.Duration) Option {
	return func(c *Client) {
		if capacity > 0 {
			c.settings.snapshotBuffer = capacity
		}
		if maxExtrapolation >= 0 {
			c.settings.maxExtrapolation = maxExtrapolation
		}
	}
}

// WithDelays sets the initial client ahead and render behind delays.
func WithDelays(clientAhead, renderBehind time.Duration) Option {
	return func(c *Client) {
		c.settings.clientAhead = max(clientAhead, 0)
		c.settings.renderBehind = max(renderBehind, 0)
	}
}

func WithClockOptions(opts ...clock.Option) Option {
	return func(c *Client) {
		c.settings.clockOpts = append(c.settings.clockOpts, opts...)
	}
}

func WithSyncOptions(opts ...controller.Option) Option {
	return func(c *Client) {
		c.settings.syncOpts = append(c.settings.syncOpts, opts...)
	}
}

func WithPredictor(p Predictor) Option {
	return func(c *Client) {
		c.settings.predictor = p
	}
}

// WithListener attaches a listener to the rendered world.
func WithListener(l entity.Listener) Option {
	return func(c *Client) {
		c.settings.listeners = append(c.settings.listeners, l)
	}
}

// WithInput sets the function that samples the input for a frame.
// Without it, the input set with SetInput is used.
func WithInput(fn func(frame uint32) command.Input) Option {
	return func(c *Client) {
		c.settings.input = fn
	}
}

// WithTimeSource replaces the wall clock. All time measurements of the client use it.
func WithTimeSource(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.settings.now = now
		}
	}
}

func defaultSettings() settings {
	return settings{
		step:             clock.DefaultStep,
		timeout:          DefaultTimeout,
		queueSize:        DefaultQueueSize,
		senderCapacity:   command.DefaultSenderCapacity,
		snapshotBuffer:   snapshot.DefaultBufferCapacity,
		maxExtrapolation: snapshot.DefaultMaxExtrapolation,
		clientAhead:      clock.DefaultClientAhead,
		renderBehind:     clock.DefaultRenderBehind,
		now:              time.Now,
	}
}
