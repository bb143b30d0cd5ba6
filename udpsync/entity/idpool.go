// Copyright (c) 2025 by Marko Gaćeša.
// Licensed under the Apache License, Version 2.0.
// See the LICENSE file or http://www.apache.org/licenses/LICENSE-2.0 for details.

package entity

import "errors"

var ErrNoFreeID = errors.New("no free entity id")

// IDPool allocates small entity ids and reuses released ones, most recently released first.
type IDPool struct {
	next  ID
	limit ID
	free  []ID
}

// NewIDPool returns a pool of ids from 1 to limit. Zero limit means MaxID.
func NewIDPool(limit ID) *IDPool {
	if limit == 0 || limit > MaxID {
		limit = MaxID
	}
	return &IDPool{next: 1, limit: limit}
}

func (p *IDPool) Alloc() (ID, error) {
	if n := len(p.free); n > 0 {
		id := p.free[n-1]
		p.free = p.free[:n-1]
		return id, nil
	}

	if p.next > p.limit {
		return 0, ErrNoFreeID
	}

	id := p.next
	p.next++

	return id, nil
}

func (p *IDPool) Release(id ID) {
	if id == 0 || id >= p.next {
		return
	}
	p.free = append(p.free, id)
}
