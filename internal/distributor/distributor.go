// Package distributor hands accepted connections out to workers.
//
// A Pool is an arena of slots. Worker i of W claims every slot whose position
// p satisfies p%W == i, taking the value out of the slot. A slot can only be
// taken once.
package distributor

import (
	"fmt"
	"sync"
)

// ClaimConflictError means a slot selected for a claim was already empty.
// It indicates an internal fault (the same index claimed twice).
type ClaimConflictError struct {
	Position int
	Index    int
	Peers    int
}

func (e *ClaimConflictError) Error() string {
	return fmt.Sprintf("slot %d already claimed (index %d of %d peers)", e.Position, e.Index, e.Peers)
}

// Slot holds at most one value.
type Slot[T any] struct {
	value T
	full  bool
}

// Pool is safe for concurrent use; the mutex is held only while claiming.
type Pool[T any] struct {
	mu    sync.Mutex
	slots []Slot[T]
}

// NewPool fills one slot per item, in order.
func NewPool[T any](items []T) *Pool[T] {
	slots := make([]Slot[T], len(items))
	for i, it := range items {
		slots[i] = Slot[T]{value: it, full: true}
	}
	return &Pool[T]{slots: slots}
}

// Claim takes every slot at a position congruent to index modulo peers.
func (p *Pool[T]) Claim(index, peers int) ([]T, error) {
	if peers <= 0 || index < 0 || index >= peers {
		return nil, fmt.Errorf("invalid claim: index %d of %d peers", index, peers)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	var claimed []T
	for pos := index; pos < len(p.slots); pos += peers {
		s := &p.slots[pos]
		if !s.full {
			return nil, &ClaimConflictError{Position: pos, Index: index, Peers: peers}
		}
		claimed = append(claimed, s.value)
	}
	// Nothing is taken unless every selected slot was available.
	for pos := index; pos < len(p.slots); pos += peers {
		p.slots[pos] = Slot[T]{}
	}
	return claimed, nil
}

// Remaining reports how many slots still hold a value.
func (p *Pool[T]) Remaining() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.slots {
		if s.full {
			n++
		}
	}
	return n
}

// Drain takes every value still in the pool.
func (p *Pool[T]) Drain() []T {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []T
	for i := range p.slots {
		if p.slots[i].full {
			out = append(out, p.slots[i].value)
			p.slots[i] = Slot[T]{}
		}
	}
	return out
}
