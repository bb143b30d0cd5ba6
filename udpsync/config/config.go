// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package config loads session settings from a YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	TickRateHz         int `yaml:"tick_rate_hz"`
	SnapshotEveryTicks int `yaml:"snapshot_every_ticks"`
	TimeoutMs          int `yaml:"timeout_ms"`
	MaxPeers           int `yaml:"max_peers"`

	CommandBuffer        int `yaml:"command_buffer"`
	SnapshotHistory      int `yaml:"snapshot_history"`
	ClientSnapshotBuffer int `yaml:"client_snapshot_buffer"`
	MaxExtrapolationMs   int `yaml:"max_extrapolation_ms"`

	RenderBehindMs  int     `yaml:"render_behind_ms"`
	ClientAheadMs   int     `yaml:"client_ahead_ms"`
	TargetFrameDiff float64 `yaml:"target_frame_diff"`
	AheadAdjust     float64 `yaml:"ahead_adjust"`
	RenderPeriodMs  int     `yaml:"render_period_ms"`
	RenderBound     float64 `yaml:"render_bound"`
	ClientBound     float64 `yaml:"client_bound"`
	SnapThresholdMs int     `yaml:"snap_threshold_ms"`
	MaxCatchUpTicks int     `yaml:"max_catch_up_ticks"`

	VerifyEveryTicks int `yaml:"verify_every_ticks"`
	VerifyDepth      int `yaml:"verify_depth"`

	ReplayPath string `yaml:"replay_path"`
	DSCP       int    `yaml:"dscp"`
}

func Default() Config {
	return Config{
		TickRateHz:           20,
		SnapshotEveryTicks:   1,
		TimeoutMs:            5000,
		MaxPeers:             16,
		CommandBuffer:        64,
		SnapshotHistory:      128,
		ClientSnapshotBuffer: 32,
		MaxExtrapolationMs:   250,
		RenderBehindMs:       100,
		ClientAheadMs:        100,
		TargetFrameDiff:      1.5,
		AheadAdjust:          0.01,
		RenderPeriodMs:       10000,
		RenderBound:          0.05,
		ClientBound:          0.02,
		SnapThresholdMs:      1000,
		MaxCatchUpTicks:      5,
		VerifyEveryTicks:     0,
		VerifyDepth:          16,
		ReplayPath:           "",
		DSCP:                 0,
	}
}

// Load reads the YAML file at path. Keys missing from the file keep their default values.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: failed to read: %w", err)
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	positive := func(name string, v int) {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%w: %s must be positive, got %d", ErrInvalid, name, v))
		}
	}
	nonNegative := func(name string, v int) {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%w: %s must not be negative, got %d", ErrInvalid, name, v))
		}
	}
	fraction := func(name string, v float64) {
		if v <= 0 || v >= 1 {
			errs = append(errs, fmt.Errorf("%w: %s must be between 0 and 1, got %g", ErrInvalid, name, v))
		}
	}

	positive("tick_rate_hz", c.TickRateHz)
	positive("snapshot_every_ticks", c.SnapshotEveryTicks)
	positive("timeout_ms", c.TimeoutMs)
	positive("max_peers", c.MaxPeers)
	positive("command_buffer", c.CommandBuffer)
	positive("snapshot_history", c.SnapshotHistory)
	positive("client_snapshot_buffer", c.ClientSnapshotBuffer)
	nonNegative("max_extrapolation_ms", c.MaxExtrapolationMs)
	nonNegative("render_behind_ms", c.RenderBehindMs)
	nonNegative("client_ahead_ms", c.ClientAheadMs)
	positive("render_period_ms", c.RenderPeriodMs)
	positive("snap_threshold_ms", c.SnapThresholdMs)
	positive("max_catch_up_ticks", c.MaxCatchUpTicks)
	nonNegative("verify_every_ticks", c.VerifyEveryTicks)
	nonNegative("verify_depth", c.VerifyDepth)
	fraction("ahead_adjust", c.AheadAdjust)
	fraction("render_bound", c.RenderBound)
	fraction("client_bound", c.ClientBound)

	if c.TargetFrameDiff < 0 {
		errs = append(errs, fmt.Errorf("%w: target_frame_diff must not be negative, got %g", ErrInvalid, c.TargetFrameDiff))
	}
	if c.TickRateHz > 1000 {
		errs = append(errs, fmt.Errorf("%w: tick_rate_hz is too large: %d", ErrInvalid, c.TickRateHz))
	}
	if c.VerifyEveryTicks > 0 && c.VerifyDepth >= c.SnapshotHistory {
		errs = append(errs, fmt.Errorf("%w: verify_depth must be smaller than snapshot_history", ErrInvalid))
	}
	if c.DSCP < 0 || c.DSCP > 63 {
		errs = append(errs, fmt.Errorf("%w: dscp must be in range 0-63, got %d", ErrInvalid, c.DSCP))
	}

	return errors.Join(errs...)
}

func (c *Config) Step() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

func (c *Config) Timeout() time.Duration          { return ms(c.TimeoutMs) }
func (c *Config) MaxExtrapolation() time.Duration { return ms(c.MaxExtrapolationMs) }
func (c *Config) RenderBehind() time.Duration     { return ms(c.RenderBehindMs) }
func (c *Config) ClientAhead() time.Duration      { return ms(c.ClientAheadMs) }
func (c *Config) RenderPeriod() time.Duration     { return ms(c.RenderPeriodMs) }
func (c *Config) SnapThreshold() time.Duration    { return ms(c.SnapThresholdMs) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
