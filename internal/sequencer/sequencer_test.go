package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

func req(clientOrderId types.OrderId) wire.ClientRequest {
	return wire.ClientRequest{Type: wire.RequestTypeNew, ClientOrderId: clientOrderId}
}

// Scenario 6 (§8): two sockets become readable in one poll cycle; the
// one with the earlier kernel timestamp is published first regardless
// of the order they were buffered in.
func TestSequencer_OrdersByReceiveTimestamp(t *testing.T) {
	out := ring.New[wire.ClientRequest](8)
	s := New(8, out)

	s.Add(10, req(1)) // socket A, later timestamp
	s.Add(5, req(2))  // socket B, earlier timestamp

	s.SequenceAndPublish()

	require.Equal(t, 2, out.Len())
	first := *out.PeekRead()
	out.CommitRead()
	second := *out.PeekRead()
	out.CommitRead()

	assert.Equal(t, types.OrderId(2), first.ClientOrderId)
	assert.Equal(t, types.OrderId(1), second.ClientOrderId)
}

func TestSequencer_StableOnEqualTimestamps(t *testing.T) {
	out := ring.New[wire.ClientRequest](8)
	s := New(8, out)

	s.Add(5, req(1))
	s.Add(5, req(2))
	s.Add(5, req(3))

	s.SequenceAndPublish()

	require.Equal(t, 3, out.Len())
	for _, want := range []types.OrderId{1, 2, 3} {
		got := *out.PeekRead()
		out.CommitRead()
		assert.Equal(t, want, got.ClientOrderId)
	}
}

func TestSequencer_ClearsBufferAfterPublish(t *testing.T) {
	out := ring.New[wire.ClientRequest](8)
	s := New(8, out)

	s.Add(1, req(1))
	s.SequenceAndPublish()
	assert.Equal(t, 0, s.Len())

	// a cycle with nothing buffered is a no-op, not an error
	s.SequenceAndPublish()
	assert.Equal(t, 1, out.Len())
}

func TestSequencer_OverflowIsFatal(t *testing.T) {
	out := ring.New[wire.ClientRequest](8)
	s := New(2, out)

	s.Add(1, req(1))
	s.Add(2, req(2))

	assert.Panics(t, func() {
		s.Add(3, req(3))
	})
}
