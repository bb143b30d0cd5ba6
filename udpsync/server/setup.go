// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package server

import (
	"log/slog"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync"
	"github.com/marko-gacesa/udpsync/udpsync/clock"
	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
	"github.com/marko-gacesa/udpsync/udpsync/snapshot"
)

const (
	DefaultTimeout       = 5 * time.Second
	DefaultMaxPeers      = 16
	DefaultSnapshotEvery = 1
	DefaultQueueSize     = 1024
	DefaultVerifyDepth   = 16
)

// Recorder receives the inputs and the resulting snapshot of every simulated frame.
type Recorder interface {
	Record(frame uint32, inputs []sim.Input, snap *snapshot.Snapshot) error
}

type settings struct {
	step          time.Duration
	maxCatchUp    int
	snapshotEvery int
	timeout       time.Duration
	maxPeers      int
	commandBuffer int
	history       int
	queueSize     int
	verifyEvery   int
	verifyDepth   int
	recorder      Recorder
	peerFn        func(udpsync.PeerInfo, udpsync.PeerEvent)
	now           func() time.Time
}

type Option func(*Server)

func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

func WithTickRate(hz int) Option {
	return func(s *Server) {
		if hz > 0 {
			s.settings.step = time.Second / time.Duration(hz)
		}
	}
}

func WithMaxCatchUp(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.settings.maxCatchUp = n
		}
	}
}

// WithSnapshotEvery sets how many ticks pass between two snapshots sent to the peers.
func WithSnapshotEvery(ticks int) Option {
	return func(s *Server) {
		if ticks > 0 {
			s.settings.snapshotEvery = ticks
		}
	}
}

// WithTimeout sets how long a peer can stay silent before it's disconnected.
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.settings.timeout = d
		}
	}
}

func WithMaxPeers(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.settings.maxPeers = n
		}
	}
}

func WithCommandBuffer(capacity int) Option {
	return func(s *Server) {
		if capacity > 0 {
			s.settings.commandBuffer = capacity
		}
	}
}

// WithSnapshotHistory sets how many recent snapshots and their inputs are kept.
func WithSnapshotHistory(depth int) Option {
	return func(s *Server) {
		if depth > 0 {
			s.settings.history = depth
		}
	}
}

func WithQueueSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.settings.queueSize = n
		}
	}
}

// WithVerify enables the periodic determinism check: every given number of ticks
// the last depth frames are simulated again and compared with the recorded snapshots.
func WithVerify(every, depth int) Option {
	return func(s *Server) {
		s.settings.verifyEvery = max(every, 0)
		if depth > 0 {
			s.settings.verifyDepth = depth
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		s.settings.recorder = r
	}
}

// WithPeerCallback sets the function called from the tick when a peer joins, leaves or times out.
func WithPeerCallback(fn func(udpsync.PeerInfo, udpsync.PeerEvent)) Option {
	return func(s *Server) {
		s.settings.peerFn = fn
	}
}

// WithTimeSource replaces the wall clock. All time measurements of the server and its peers use it.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.settings.now = now
		}
	}
}

func defaultSettings() settings {
	return settings{
		step:          clock.DefaultStep,
		maxCatchUp:    clock.DefaultMaxCatchUp,
		snapshotEvery: DefaultSnapshotEvery,
		timeout:       DefaultTimeout,
		maxPeers:      DefaultMaxPeers,
		commandBuffer: command.DefaultBufferCapacity,
		history:       snapshot.DefaultStreamDepth,
		queueSize:     DefaultQueueSize,
		verifyDepth:   DefaultVerifyDepth,
		now:           time.Now,
	}
}
