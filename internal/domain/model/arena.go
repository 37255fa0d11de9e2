package model

import (
	"github.com/luminos-ui/shellhost/internal/shared/id"
)

type slot[T any] struct {
	value      T
	generation uint32
	live       bool
}

// Arena is a generational slot store. Freed slots are recycled with a
// bumped generation so stale handles miss instead of aliasing.
type Arena[T any] struct {
	slots []slot[T]
	free  []uint32
	count int
}

// NewArena creates an empty arena.
func NewArena[T any]() *Arena[T] {
	return &Arena[T]{}
}

// Alloc reserves a slot, invokes construct with the slot's handle and
// stores the result.
func (a *Arena[T]) Alloc(construct func(h id.Handle) T) id.Handle {
	var index uint32
	if n := len(a.free); n > 0 {
		index = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		index = uint32(len(a.slots))
		a.slots = append(a.slots, slot[T]{})
	}

	s := &a.slots[index]
	s.generation++
	s.live = true
	h := id.NewHandle(index, s.generation)
	s.value = construct(h)
	a.count++
	return h
}

// Get resolves a handle. Stale or foreign handles return (nil, false).
func (a *Arena[T]) Get(h id.Handle) (*T, bool) {
	if !h.Valid() || int(h.Index()) >= len(a.slots) {
		return nil, false
	}
	s := &a.slots[h.Index()]
	if !s.live || s.generation != h.Generation() {
		return nil, false
	}
	return &s.value, true
}

// Free releases a handle's slot. Freeing a stale handle is a no-op.
func (a *Arena[T]) Free(h id.Handle) bool {
	if !h.Valid() || int(h.Index()) >= len(a.slots) {
		return false
	}
	s := &a.slots[h.Index()]
	if !s.live || s.generation != h.Generation() {
		return false
	}
	var zero T
	s.value = zero
	s.live = false
	a.free = append(a.free, h.Index())
	a.count--
	return true
}

// Len returns the number of live records.
func (a *Arena[T]) Len() int { return a.count }

// ForEach visits every live record until fn returns false.
func (a *Arena[T]) ForEach(fn func(h id.Handle, v *T) bool) {
	for i := range a.slots {
		s := &a.slots[i]
		if !s.live {
			continue
		}
		if !fn(id.NewHandle(uint32(i), s.generation), &s.value) {
			return
		}
	}
}
