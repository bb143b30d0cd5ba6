// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package entity

import "github.com/marko-gacesa/udpsync/udpsync/message"

// Score holds points of a peer. It is not interpolated.
type Score struct {
	EntityID ID
	Owner    message.Token
	Points   int32
}

var _ State = (*Score)(nil)

func (s *Score) ID() ID     { return s.EntityID }
func (s *Score) Kind() Kind { return KindScore }

func (s *Score) Put(buf []byte) []byte {
	ser := message.NewSerializer(buf)
	ser.PutToken(s.Owner)
	ser.Put32(uint32(s.Points))
	return ser.Bytes()
}

func (s *Score) Get(buf []byte) ([]byte, error) {
	var points uint32
	des := message.NewDeserializer(buf)
	des.GetToken(&s.Owner)
	des.Get32(&points)
	s.Points = int32(points)
	return des.Bytes(), des.Error()
}

func (s *Score) Lerp(to State, t float32) State {
	if t >= 1 {
		if other, ok := to.(*Score); ok && other.EntityID == s.EntityID {
			return other
		}
	}
	return s
}
