// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package entity

import (
	"math"
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/message"
)

// Body is a moving entity controlled by a peer.
type Body struct {
	EntityID ID
	Owner    message.Token
	X, Y     float32
	VX, VY   float32
	Angle    float32
	Flags    uint8
}

var _ interface {
	State
	Extrapolator
} = (*Body)(nil)

func (b *Body) ID() ID     { return b.EntityID }
func (b *Body) Kind() Kind { return KindBody }

func (b *Body) Put(buf []byte) []byte {
	s := message.NewSerializer(buf)
	s.PutToken(b.Owner)
	s.PutF32(b.X)
	s.PutF32(b.Y)
	s.PutF32(b.VX)
	s.PutF32(b.VY)
	s.PutF32(b.Angle)
	s.Put8(b.Flags)
	return s.Bytes()
}

func (b *Body) Get(buf []byte) ([]byte, error) {
	s := message.NewDeserializer(buf)
	s.GetToken(&b.Owner)
	s.GetF32(&b.X)
	s.GetF32(&b.Y)
	s.GetF32(&b.VX)
	s.GetF32(&b.VY)
	s.GetF32(&b.Angle)
	s.Get8(&b.Flags)
	return s.Bytes(), s.Error()
}

func (b *Body) Lerp(to State, t float32) State {
	other, ok := to.(*Body)
	if !ok || other.EntityID != b.EntityID {
		return b
	}

	r := *b
	r.X = lerp(b.X, other.X, t)
	r.Y = lerp(b.Y, other.Y, t)
	r.VX = lerp(b.VX, other.VX, t)
	r.VY = lerp(b.VY, other.VY, t)
	r.Angle = lerpAngle(b.Angle, other.Angle, t)
	if t >= 1 {
		r.Flags = other.Flags
	}

	return &r
}

func (b *Body) Extrapolate(d time.Duration) State {
	sec := float32(d.Seconds())
	r := *b
	r.X += b.VX * sec
	r.Y += b.VY * sec
	return &r
}

func lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// lerpAngle interpolates along the shorter arc.
func lerpAngle(a, b, t float32) float32 {
	d := math.Remainder(float64(b-a), 2*math.Pi)
	return a + float32(d)*t
}
