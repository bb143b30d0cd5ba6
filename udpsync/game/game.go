// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

// Package game is a small deterministic game: every peer controls an avatar in a square arena
// and scores a point for every frame its avatar spends inside the central zone.
package game

import (
	"time"

	"github.com/marko-gacesa/udpsync/udpsync/command"
	"github.com/marko-gacesa/udpsync/udpsync/entity"
	"github.com/marko-gacesa/udpsync/udpsync/sim"
)

const (
	DefaultSpeed = 5
	DefaultArena = 10
	DefaultZone  = 2

	// ScoreOffset is added to the avatar id to get the id of its score entity.
	ScoreOffset entity.ID = 1 << 15

	// MaxAvatarID is the largest id an avatar can have.
	MaxAvatarID = ScoreOffset - 1
)

type Game struct {
	dt    float32
	speed float32
	arena float32
	zone  float32
}

var _ sim.Simulation = (*Game)(nil)

func New(step time.Duration) *Game {
	return &Game{
		dt:    float32(step.Seconds()),
		speed: DefaultSpeed,
		arena: DefaultArena,
		zone:  DefaultZone,
	}
}

// Step executes a single frame of the game.
func (g *Game) Step(_ uint32, prev []entity.State, inputs []sim.Input) []entity.State {
	byEntity := make(map[entity.ID]sim.Input, len(inputs))
	for _, in := range inputs {
		byEntity[in.Entity] = in
	}

	next := make([]entity.State, 0, len(prev)+2*len(inputs))
	present := make(map[entity.ID]bool, len(prev))

	for _, s := range prev {
		present[s.ID()] = true

		switch v := s.(type) {
		case *entity.Body:
			in, ok := byEntity[v.EntityID]
			if ok && in.Event == sim.EventLeave {
				continue
			}
			b := *v
			if ok {
				g.Move(&b, in.Command.Input)
			} else {
				g.Move(&b, command.Input{})
			}
			next = append(next, &b)

		case *entity.Score:
			avatar := v.EntityID - ScoreOffset
			in, ok := byEntity[avatar]
			if ok && in.Event == sim.EventLeave {
				continue
			}
			next = append(next, v)

		default:
			next = append(next, s)
		}
	}

	for _, in := range inputs {
		if in.Event != sim.EventJoin || present[in.Entity] || in.Entity > MaxAvatarID {
			continue
		}
		b := g.Spawn(in)
		g.Move(b, in.Command.Input)
		next = append(next, b, &entity.Score{EntityID: in.Entity + ScoreOffset, Owner: in.Peer})
	}

	// scoring
	inZone := make(map[entity.ID]bool)
	for _, s := range next {
		if b, ok := s.(*entity.Body); ok && b.X*b.X+b.Y*b.Y < g.zone*g.zone {
			inZone[b.EntityID] = true
		}
	}
	for i, s := range next {
		if sc, ok := s.(*entity.Score); ok && inZone[sc.EntityID-ScoreOffset] {
			updated := *sc
			updated.Points++
			next[i] = &updated
		}
	}

	return next
}

// Spawn returns a new avatar at a position derived from its id.
func (g *Game) Spawn(in sim.Input) *entity.Body {
	id := uint32(in.Entity)
	return &entity.Body{
		EntityID: in.Entity,
		Owner:    in.Peer,
		X:        float32(id%8)*2 - 7,
		Y:        float32(id/8%8)*2 - 7,
	}
}

// Move applies an input to the avatar for the duration of one frame.
func (g *Game) Move(b *entity.Body, in command.Input) {
	b.VX = clamp(in.MoveX, -1, 1) * g.speed
	b.VY = clamp(in.MoveY, -1, 1) * g.speed
	b.X = clamp(b.X+b.VX*g.dt, -g.arena, g.arena)
	b.Y = clamp(b.Y+b.VY*g.dt, -g.arena, g.arena)
	b.Angle = in.Aim
	b.Flags = uint8(in.Buttons)
}

// Predict returns the avatar moved by the commands, starting from an authoritative state.
func (g *Game) Predict(base entity.State, commands []command.Command) entity.State {
	b, ok := base.(*entity.Body)
	if !ok {
		return base
	}

	p := *b
	for _, c := range commands {
		g.Move(&p, c.Input)
	}

	return &p
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}
