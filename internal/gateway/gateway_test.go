package gateway

import (
	"net"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/sequencer"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

func newTestServer() *Server {
	reqRing := ring.New[wire.ClientRequest](16)
	seq := sequencer.New(16, reqRing)
	rspRing := ring.New[wire.ClientResponse](16)
	return NewServer(nil, wire.Bounds{}, seq, rspRing, zerolog.Nop())
}

func newOrderFrame(seqNum uint64, clientId types.ClientId) wire.RequestFrame {
	return wire.RequestFrame{
		Seq: seqNum,
		Request: wire.ClientRequest{
			Type: wire.RequestTypeNew, ClientId: clientId, TickerId: 1,
			ClientOrderId: types.OrderId(seqNum), Side: types.SideBuy, Price: 100, Qty: 10,
		},
	}
}

func TestServer_AdmitAcceptsContiguousSequence(t *testing.T) {
	s := newTestServer()

	ok1 := s.admit(uuid.New(), nil, newOrderFrame(1, 1))
	ok2 := s.admit(uuid.New(), nil, newOrderFrame(2, 1))

	assert.True(t, ok1)
	assert.True(t, ok2)
}

func TestServer_AdmitRejectsGapAndDuplicate(t *testing.T) {
	s := newTestServer()

	require.True(t, s.admit(uuid.New(), nil, newOrderFrame(1, 2)))
	assert.False(t, s.admit(uuid.New(), nil, newOrderFrame(3, 2))) // gap
	assert.True(t, s.admit(uuid.New(), nil, newOrderFrame(2, 2)))  // back on track
	assert.False(t, s.admit(uuid.New(), nil, newOrderFrame(2, 2))) // duplicate
}

func TestServer_AdmitRejectsMalformedRequest(t *testing.T) {
	s := newTestServer()
	bad := newOrderFrame(1, 3)
	bad.Request.Side = types.Side(99)
	assert.False(t, s.admit(uuid.New(), nil, bad))
}

func TestServer_AdmitAcceptsZeroQuantityNew(t *testing.T) {
	// qty == 0 is not a gateway-level rejection (OPEN QUESTION decision 1,
	// SPEC_FULL.md): it must reach the matching engine so OrderBook.Add
	// can emit the documented INVALID response instead of being dropped
	// silently at the edge.
	s := newTestServer()
	zero := newOrderFrame(1, 4)
	zero.Request.Qty = 0
	assert.True(t, s.admit(uuid.New(), nil, zero))
}

func TestServer_AdmitRejectsRecordFromDifferentSocket(t *testing.T) {
	s := newTestServer()
	connA, _ := net.Pipe()
	connB, _ := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	require.True(t, s.admit(uuid.New(), connA, newOrderFrame(1, 5)))
	// connB sends a correctly-sequenced next frame for the same client,
	// but over a different socket: a client may not multiplex across
	// sockets, so the record must be dropped rather than rebinding.
	assert.False(t, s.admit(uuid.New(), connB, newOrderFrame(2, 5)))

	state := s.stateFor(types.ClientId(5))
	state.mu.Lock()
	defer state.mu.Unlock()
	assert.Equal(t, connA, state.conn)
	assert.Equal(t, uint64(1), state.lastRecvSeq)
}

func TestServer_UnbindAllowsReconnectOnNewSocket(t *testing.T) {
	s := newTestServer()
	connA, _ := net.Pipe()
	connB, _ := net.Pipe()
	defer connA.Close()
	defer connB.Close()

	require.True(t, s.admit(uuid.New(), connA, newOrderFrame(1, 6)))
	s.unbind(types.ClientId(6), connA)
	// connA disconnected and released its binding; connB may now bind.
	assert.True(t, s.admit(uuid.New(), connB, newOrderFrame(2, 6)))

	state := s.stateFor(types.ClientId(6))
	state.mu.Lock()
	defer state.mu.Unlock()
	assert.Equal(t, connB, state.conn)
}

func TestServer_AdmitTracksSequenceIndependentlyPerClient(t *testing.T) {
	s := newTestServer()
	require.True(t, s.admit(uuid.New(), nil, newOrderFrame(1, 1)))
	require.True(t, s.admit(uuid.New(), nil, newOrderFrame(1, 2)))
	assert.True(t, s.admit(uuid.New(), nil, newOrderFrame(2, 1)))
}

func TestServer_SequenceLoopDrainsSequencerBuffer(t *testing.T) {
	s := newTestServer()
	stop := make(chan struct{})
	go s.sequenceLoop(stop)
	defer close(stop)

	s.incoming <- timestampedFrame{recvTimeNanos: 10, request: newOrderFrame(1, 1).Request}
	s.incoming <- timestampedFrame{recvTimeNanos: 5, request: newOrderFrame(1, 2).Request}

	// sequenceLoop hands batches to the sequencer, which publishes onto
	// its own request ring; s.seq.Len() drains back to zero once both
	// buffered frames have been sequenced and published.
	deadline := time.Now().Add(time.Second)
	for s.seq.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	assert.Equal(t, 0, s.seq.Len())
}

func TestServer_DispatchRoutesResponseToBoundConnection(t *testing.T) {
	s := newTestServer()
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	state := s.stateFor(types.ClientId(9))
	state.mu.Lock()
	state.conn = server
	state.mu.Unlock()

	stop := make(chan struct{})
	go s.dispatchResponses(stop)
	defer close(stop)

	*s.rsp.ReserveWrite() = wire.ClientResponse{Type: wire.ResponseTypeAccepted, ClientId: 9, TickerId: 1, ClientOrderId: 42, MarketOrderId: 1}
	s.rsp.CommitWrite()

	buf := make([]byte, wire.ResponseFrameSize)
	require.NoError(t, client.SetReadDeadline(time.Now().Add(time.Second)))
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, wire.ResponseFrameSize, n)

	var frame wire.ResponseFrame
	frame.Decode(buf)
	assert.Equal(t, uint64(1), frame.Seq)
	assert.Equal(t, wire.ResponseTypeAccepted, frame.Response.Type)
	assert.Equal(t, types.OrderId(42), frame.Response.ClientOrderId)
}
