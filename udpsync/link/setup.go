// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package link

import (
	"log/slog"
	"time"
)

const DefaultStatsWindow = 8 * time.Second

type Option func(*Channel)

func WithLogger(log *slog.Logger) Option {
	return func(c *Channel) {
		c.log = log
	}
}

// WithStatsWindow sets how long packet history is kept for statistics.
func WithStatsWindow(d time.Duration) Option {
	return func(c *Channel) {
		if d > 0 {
			c.window = d
		}
	}
}

// WithTimeSource replaces the wall clock used by the exported methods.
func WithTimeSource(now func() time.Time) Option {
	return func(c *Channel) {
		if now != nil {
			c.now = now
		}
	}
}
