// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package link

import "errors"

var (
	ErrClosed    = errors.New("link closed")
	ErrMalformed = errors.New("malformed packet")
	ErrTooLarge  = errors.New("message too large")
)
