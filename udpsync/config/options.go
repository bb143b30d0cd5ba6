// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package config

import (
	"log/slog"

	"github.com/marko-gacesa/udpsync/udpsync/client"
	"github.com/marko-gacesa/udpsync/udpsync/clock"
	"github.com/marko-gacesa/udpsync/udpsync/controller"
	"github.com/marko-gacesa/udpsync/udpsync/server"
)

// ServerOptions converts the configuration to server options.
// The replay recorder isn't included, the caller owns the file.
func (c *Config) ServerOptions(log *slog.Logger) []server.Option {
	return []server.Option{
		server.WithLogger(log),
		server.WithTickRate(c.TickRateHz),
		server.WithMaxCatchUp(c.MaxCatchUpTicks),
		server.WithSnapshotEvery(c.SnapshotEveryTicks),
		server.WithTimeout(c.Timeout()),
		server.WithMaxPeers(c.MaxPeers),
		server.WithCommandBuffer(c.CommandBuffer),
		server.WithSnapshotHistory(c.SnapshotHistory),
		server.WithVerify(c.VerifyEveryTicks, c.VerifyDepth),
	}
}

func (c *Config) ClientOptions(log *slog.Logger) []client.Option {
	return []client.Option{
		client.WithLogger(log),
		client.WithTickRate(c.TickRateHz),
		client.WithTimeout(c.Timeout()),
		client.WithSnapshotBuffer(c.ClientSnapshotBuffer, c.MaxExtrapolation()),
		client.WithDelays(c.ClientAhead(), c.RenderBehind()),
		client.WithClockOptions(
			clock.WithMaxCatchUp(c.MaxCatchUpTicks),
			clock.WithRenderBound(c.RenderBound),
			clock.WithClientBound(c.ClientBound),
			clock.WithSnapThreshold(c.SnapThreshold()),
		),
		client.WithSyncOptions(
			controller.WithTargetFrameDiff(c.TargetFrameDiff),
			controller.WithAheadAdjust(c.AheadAdjust),
			controller.WithRenderPeriod(c.RenderPeriod()),
		),
	}
}
