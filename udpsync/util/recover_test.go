// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package util

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestRecover(t *testing.T) {
	buf := &bytes.Buffer{}
	log := slog.New(slog.NewTextHandler(buf, nil))

	func() {
		defer Recover(log)
		panic("boom")
	}()

	if !strings.Contains(buf.String(), "boom") {
		t.Errorf("panic not logged: %s", buf.String())
	}
}

func TestRecoverErr(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	run := func() (err error) {
		defer RecoverErr(log, &err)
		var m map[string]int
		m["x"] = 1
		return nil
	}

	if err := run(); err == nil || !strings.HasPrefix(err.Error(), "panic:") {
		t.Errorf("expected panic error, got %v", err)
	}
}
