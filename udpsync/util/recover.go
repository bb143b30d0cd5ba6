// Copyright (c) 2023, 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package util

import (
	"fmt"
	"log/slog"
	"runtime/debug"
)

// Recover logs a panic. It must be called with defer.
func Recover(log *slog.Logger) {
	if r := recover(); r != nil {
		log.Error("panic recovered",
			"type", fmt.Sprintf("%T", r),
			"value", fmt.Sprint(r),
			"stack", string(debug.Stack()))
	}
}

// RecoverErr logs a panic and turns it into an error returned through errPtr. It must be called with defer.
func RecoverErr(log *slog.Logger, errPtr *error) {
	if r := recover(); r != nil {
		log.Error("panic recovered",
			"type", fmt.Sprintf("%T", r),
			"value", fmt.Sprint(r),
			"stack", string(debug.Stack()))
		if errPtr != nil && *errPtr == nil {
			*errPtr = fmt.Errorf("panic: %v", r)
		}
	}
}
