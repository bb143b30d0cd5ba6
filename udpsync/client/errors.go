// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package client

import "errors"

var (
	ErrAlreadyStarted = errors.New("already started")
	ErrTimeout        = errors.New("server timed out")
	ErrServerClosed   = errors.New("server closed the session")
	ErrClosed         = errors.New("client closed")
)
