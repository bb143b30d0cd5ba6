// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package clock

import "time"

// DefaultAging is how fast, in RTT per wall second, the best accepted sample loses its quality.
const DefaultAging = 0.005

// Estimator estimates the server time from timestamps received from the server.
// Only samples with a round trip time not worse than the best one seen so far are accepted,
// so a single slow packet can never move the estimate. The best RTT slowly ages,
// which allows the estimate to follow clock drift and route changes.
type Estimator struct {
	aging  float64
	best   time.Duration
	bestAt time.Duration
	offset time.Duration
	valid  bool
}

func NewEstimator(aging float64) *Estimator {
	if aging < 0 {
		aging = 0
	}
	return &Estimator{aging: aging}
}

// Observe offers a sample: the server time serverTime was received at the local wall time wall,
// with the round trip time rtt. It returns true if the sample has been accepted.
func (e *Estimator) Observe(wall, serverTime, rtt time.Duration) bool {
	if rtt < 0 {
		return false
	}

	if e.valid && rtt > e.aged(wall) {
		return false
	}

	e.best = rtt
	e.bestAt = wall
	e.offset = serverTime + rtt/2 - wall
	e.valid = true

	return true
}

// Estimate returns the estimated server time at the local wall time.
func (e *Estimator) Estimate(wall time.Duration) (time.Duration, bool) {
	if !e.valid {
		return 0, false
	}
	return wall + e.offset, true
}

// BestRTT returns the RTT of the currently used sample.
func (e *Estimator) BestRTT() time.Duration {
	return e.best
}

func (e *Estimator) aged(wall time.Duration) time.Duration {
	return e.best + time.Duration(float64(wall-e.bestAt)*e.aging)
}
