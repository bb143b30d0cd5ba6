// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package server

import "errors"

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrTooManyPeers   = errors.New("too many peers")
	ErrOversized      = errors.New("packet too large")
)
