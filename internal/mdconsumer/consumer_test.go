package mdconsumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

type fakeBook struct {
	applied []wire.MarketUpdate
}

func (b *fakeBook) Apply(u wire.MarketUpdate) { b.applied = append(b.applied, u) }

type fakeMcast struct {
	joined int
	left   int
}

func (m *fakeMcast) JoinSnapshot()  { m.joined++ }
func (m *fakeMcast) LeaveSnapshot() { m.left++ }

func seqOrderId(seq uint64) types.OrderId {
	return types.OrderId(seq)
}

func TestConsumer_SteadyStateAppliesInOrder(t *testing.T) {
	book := &fakeBook{}
	mc := &fakeMcast{}
	c := New(book, mc)

	c.OnIncremental(wire.PublicMessage{SeqNum: 1, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}})
	c.OnIncremental(wire.PublicMessage{SeqNum: 2, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}})

	assert.False(t, c.InRecovery())
	assert.Equal(t, uint64(3), c.NextExpectedSeq())
	assert.Len(t, book.applied, 2)
	assert.Equal(t, 0, mc.joined)
}

func TestConsumer_GapEntersRecoveryAndJoinsSnapshot(t *testing.T) {
	book := &fakeBook{}
	mc := &fakeMcast{}
	c := New(book, mc)

	c.OnIncremental(wire.PublicMessage{SeqNum: 1, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}})
	c.OnIncremental(wire.PublicMessage{SeqNum: 5, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}}) // gap at 2,3,4

	assert.True(t, c.InRecovery())
	assert.Equal(t, 1, mc.joined)
}

func TestConsumer_SnapshotDiscardedOutsideRecovery(t *testing.T) {
	book := &fakeBook{}
	mc := &fakeMcast{}
	c := New(book, mc)

	c.OnSnapshot(wire.PublicMessage{SeqNum: 0, Update: wire.MarketUpdate{Type: wire.MarketUpdateSnapshotStart}})
	assert.False(t, c.InRecovery())
	assert.Empty(t, book.applied)
}

// Scenario 5 (§8): publisher emits incrementals 1..100; consumer receives
// 1..40 and 61..100 (20 dropped). Recovery triggers at the first gap
// (seq 61). The next snapshot cycle's SNAPSHOT_END carries seq_num=120.
// Recovery applies the snapshot, then splices incrementals 121.. —
// discarding the already-covered 61..100 range.
func TestConsumer_RecoverySplicesSnapshotAndResumesIncrementals(t *testing.T) {
	book := &fakeBook{}
	mc := &fakeMcast{}
	c := New(book, mc)

	for s := uint64(1); s <= 40; s++ {
		c.OnIncremental(wire.PublicMessage{SeqNum: s, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd, OrderId: seqOrderId(s)}})
	}
	require.Equal(t, uint64(41), c.NextExpectedSeq())

	// 41..60 dropped; first surviving message is 61 -> gap detected.
	for s := uint64(61); s <= 100; s++ {
		c.OnIncremental(wire.PublicMessage{SeqNum: s, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd, OrderId: seqOrderId(s)}})
	}
	require.True(t, c.InRecovery())
	require.Equal(t, 1, mc.joined)

	appliedBeforeSnapshot := len(book.applied)

	// Snapshot cycle: START(seq_num=120), CLEAR, ADD, END(seq_num=120).
	c.OnSnapshot(wire.PublicMessage{SeqNum: 0, Update: wire.MarketUpdate{Type: wire.MarketUpdateSnapshotStart, SeqNum: 120}})
	c.OnSnapshot(wire.PublicMessage{SeqNum: 1, Update: wire.MarketUpdate{Type: wire.MarketUpdateClear}})
	c.OnSnapshot(wire.PublicMessage{SeqNum: 2, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd, OrderId: 9001}})
	c.OnSnapshot(wire.PublicMessage{SeqNum: 3, Update: wire.MarketUpdate{Type: wire.MarketUpdateSnapshotEnd, SeqNum: 120}})

	assert.False(t, c.InRecovery())
	assert.Equal(t, 1, mc.left)
	assert.Equal(t, uint64(121), c.NextExpectedSeq())

	// The snapshot's CLEAR+ADD applied, then incrementals 121.. resume
	// (none queued in this test), and the stale 61..100 batch is gone.
	assert.Greater(t, len(book.applied), appliedBeforeSnapshot)

	// incrementals after the snapshot watermark continue normally.
	c.OnIncremental(wire.PublicMessage{SeqNum: 121, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd, OrderId: 121}})
	assert.Equal(t, uint64(122), c.NextExpectedSeq())
	assert.False(t, c.InRecovery())
}

func TestConsumer_RecoveryAbortsOnGapAboveSnapshotWatermark(t *testing.T) {
	book := &fakeBook{}
	mc := &fakeMcast{}
	c := New(book, mc)

	c.OnIncremental(wire.PublicMessage{SeqNum: 1, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}})
	c.OnIncremental(wire.PublicMessage{SeqNum: 5, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}}) // gap -> recovery
	// Queue an incremental above the eventual watermark with its own gap.
	c.OnIncremental(wire.PublicMessage{SeqNum: 10, Update: wire.MarketUpdate{Type: wire.MarketUpdateAdd}})

	c.OnSnapshot(wire.PublicMessage{SeqNum: 0, Update: wire.MarketUpdate{Type: wire.MarketUpdateSnapshotStart, SeqNum: 2}})
	c.OnSnapshot(wire.PublicMessage{SeqNum: 1, Update: wire.MarketUpdate{Type: wire.MarketUpdateSnapshotEnd, SeqNum: 2}})

	// watermark+1 = 3, but queued incrementals are {5,10}: a gap exists
	// immediately above the watermark, so recovery must not complete.
	assert.True(t, c.InRecovery())
}
