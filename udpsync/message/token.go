// Copyright (c) 2023-2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package message

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
)

// Token identifies a peer within a session.
type Token uint32

const SizeOfToken = 4

func (t Token) String() string {
	var buff [SizeOfToken]byte
	binary.BigEndian.PutUint32(buff[:], uint32(t))
	return hex.EncodeToString(buff[:])
}

// RandomToken returns a random non-zero token.
func RandomToken() Token {
	var buffer [SizeOfToken]byte
	for {
		_, _ = rand.Read(buffer[:])
		if t := Token(binary.LittleEndian.Uint32(buffer[:])); t != 0 {
			return t
		}
	}
}
