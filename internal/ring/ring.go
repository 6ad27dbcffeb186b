// Package ring implements the wait-free single-producer/single-consumer
// bounded queue that is the only cross-task channel in the engine (§4.1,
// §5, §9). Exactly one task ever calls the producer methods
// (ReserveWrite/CommitWrite) and exactly one task ever calls the consumer
// methods (PeekRead/CommitRead); that static binding is what lets the
// implementation avoid any CAS loop or lock.
package ring

import "sync/atomic"

// Ring is a fixed-capacity circular buffer of capacity slots of T,
// pre-allocated at construction. Capacity must be a power of two so the
// index arithmetic can use a bitmask instead of a modulo.
type Ring[T any] struct {
	mask  uint64
	slots []T

	// writeIdx is advanced only by the producer. readIdx is advanced
	// only by the consumer. count is the population counter both sides
	// use to synchronize: the producer increments it after writing a
	// slot (a release), the consumer's load of it (an acquire) is what
	// guarantees it observes that write.
	writeIdx uint64
	readIdx  uint64
	count    atomic.Uint64
}

// New builds a ring of the given capacity, which must be a power of two.
func New[T any](capacity int) *Ring[T] {
	if capacity <= 0 || capacity&(capacity-1) != 0 {
		panic("ring: capacity must be a power of two")
	}
	return &Ring[T]{
		mask:  uint64(capacity - 1),
		slots: make([]T, capacity),
	}
}

// Cap returns the ring's fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.slots)
}

// Len returns the current population count. Safe to call from either
// side; an acquire load of the shared counter.
func (r *Ring[T]) Len() int {
	return int(r.count.Load())
}

// ReserveWrite returns a pointer to the slot at the current write
// position for the producer to populate in place. It is legal to call
// ReserveWrite and mutate the slot without ever calling CommitWrite (the
// write is simply overwritten next time). Fatal if the ring is full:
// capacities are chosen so this cannot happen under normal load (§4.1,
// §7 resource exhaustion).
func (r *Ring[T]) ReserveWrite() *T {
	if r.Len() == len(r.slots) {
		panic("ring: reserve_write on full ring")
	}
	return &r.slots[r.writeIdx&r.mask]
}

// CommitWrite publishes the slot last returned by ReserveWrite: advances
// the write cursor and increments the population counter with release
// semantics, making the written slot visible to the consumer's next
// PeekRead.
func (r *Ring[T]) CommitWrite() {
	r.writeIdx++
	r.count.Add(1)
}

// PeekRead returns a pointer to the slot at the current read position, or
// nil if the ring is empty.
func (r *Ring[T]) PeekRead() *T {
	if r.Len() == 0 {
		return nil
	}
	return &r.slots[r.readIdx&r.mask]
}

// CommitRead advances the read cursor past the slot last returned by
// PeekRead and decrements the population counter.
func (r *Ring[T]) CommitRead() {
	r.readIdx++
	r.count.Add(^uint64(0)) // atomic decrement by 1
}
