package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	n int
}

func TestPool_AllocGetFree(t *testing.T) {
	p := New[widget](4)
	require.Equal(t, 4, p.Cap())
	require.Equal(t, 0, p.Len())

	a := p.Alloc()
	p.Get(a).n = 7
	assert.Equal(t, 1, p.Len())
	assert.Equal(t, 7, p.Get(a).n)

	p.Free(a)
	assert.Equal(t, 0, p.Len())
}

func TestPool_AllocReturnsZeroedSlot(t *testing.T) {
	p := New[widget](2)
	a := p.Alloc()
	p.Get(a).n = 99
	p.Free(a)

	b := p.Alloc()
	assert.Equal(t, 0, p.Get(b).n)
}

func TestPool_StableIndexAcrossOtherAllocations(t *testing.T) {
	p := New[widget](4)
	a := p.Alloc()
	p.Get(a).n = 1
	b := p.Alloc()
	p.Get(b).n = 2

	assert.Equal(t, 1, p.Get(a).n)
	assert.Equal(t, 2, p.Get(b).n)
}

func TestPool_ScanForwardReusesFreedSlots(t *testing.T) {
	p := New[widget](3)
	a := p.Alloc()
	_ = p.Alloc()
	_ = p.Alloc()
	p.Free(a)

	reused := p.Alloc()
	assert.Equal(t, a, reused)
}

func TestPool_ExhaustionPanics(t *testing.T) {
	p := New[widget](1)
	p.Alloc()
	assert.Panics(t, func() {
		p.Alloc()
	})
}

func TestPool_DoubleFreePanics(t *testing.T) {
	p := New[widget](1)
	a := p.Alloc()
	p.Free(a)
	assert.Panics(t, func() {
		p.Free(a)
	})
}
