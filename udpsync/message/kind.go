// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

// Kind is the first byte of every payload and of every reliable control message.
type Kind byte

const (
	KindCommands Kind = iota + 1
	KindSnapshot
	KindHello
	KindWelcome
	KindBye
)

func (k Kind) String() string {
	switch k {
	case KindCommands:
		return "commands"
	case KindSnapshot:
		return "snapshot"
	case KindHello:
		return "hello"
	case KindWelcome:
		return "welcome"
	case KindBye:
		return "bye"
	}
	return "unknown"
}

// PeekKind returns the kind of the payload without consuming it.
func PeekKind(buf []byte) (Kind, bool) {
	if len(buf) == 0 {
		return 0, false
	}
	return Kind(buf[0]), true
}

// CheckKind reads the kind byte and reports whether it matches.
func (s *Deserializer) CheckKind(kind Kind) bool {
	var b byte
	s.Get8(&b)
	return s.Error() == nil && Kind(b) == kind
}
