// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package sequence

// Sequence is a packet sequence number. It wraps at 65536, so it must never be compared
// with the ordinary operators. Use Newer and Distance instead.
type Sequence uint16

const halfRange = 1 << 15

// Newer reports whether a is more recent than b, taking the wraparound into account.
func Newer(a, b Sequence) bool {
	return a != b && uint16(a-b) < halfRange
}

// Distance returns the signed distance from b to a: positive if a is newer than b.
func Distance(a, b Sequence) int {
	return int(int16(a - b))
}

// Next returns the sequence following s.
func (s Sequence) Next() Sequence {
	return s + 1
}
