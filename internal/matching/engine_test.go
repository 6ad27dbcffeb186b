package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

func drainResponses(rsp *ring.Ring[wire.ClientResponse]) []wire.ClientResponse {
	var out []wire.ClientResponse
	for rsp.Len() > 0 {
		out = append(out, *rsp.PeekRead())
		rsp.CommitRead()
	}
	return out
}

func drainUpdates(md *ring.Ring[wire.MarketUpdate]) []wire.MarketUpdate {
	var out []wire.MarketUpdate
	for md.Len() > 0 {
		out = append(out, *md.PeekRead())
		md.CommitRead()
	}
	return out
}

func TestEngine_DispatchesToCorrectBook(t *testing.T) {
	reqRing := ring.New[wire.ClientRequest](16)
	rspRing := ring.New[wire.ClientResponse](16)
	mdRing := ring.New[wire.MarketUpdate](16)
	eng := New(2, 8, 32, reqRing, rspRing, mdRing)

	submit := func(req wire.ClientRequest) {
		*reqRing.ReserveWrite() = req
		reqRing.CommitWrite()
		peeked := reqRing.PeekRead()
		require.NotNil(t, peeked)
		eng.processOne(peeked)
		reqRing.CommitRead()
	}

	submit(wire.ClientRequest{Type: wire.RequestTypeNew, ClientId: 1, TickerId: 0, ClientOrderId: 1, Side: types.SideBuy, Price: 100, Qty: 10})
	submit(wire.ClientRequest{Type: wire.RequestTypeNew, ClientId: 2, TickerId: 1, ClientOrderId: 1, Side: types.SideSell, Price: 200, Qty: 5})

	responses := drainResponses(rspRing)
	require.Len(t, responses, 2)
	assert.Equal(t, wire.ResponseTypeAccepted, responses[0].Type)
	assert.Equal(t, types.TickerId(0), responses[0].TickerId)
	assert.Equal(t, wire.ResponseTypeAccepted, responses[1].Type)
	assert.Equal(t, types.TickerId(1), responses[1].TickerId)

	updates := drainUpdates(mdRing)
	require.Len(t, updates, 2)
}

func TestEngine_UnknownTickerIsRejectedNotFatal(t *testing.T) {
	reqRing := ring.New[wire.ClientRequest](4)
	rspRing := ring.New[wire.ClientResponse](4)
	mdRing := ring.New[wire.MarketUpdate](4)
	eng := New(1, 8, 32, reqRing, rspRing, mdRing)

	req := wire.ClientRequest{Type: wire.RequestTypeNew, ClientId: 1, TickerId: 99, ClientOrderId: 1, Side: types.SideBuy, Price: 100, Qty: 10}
	eng.processOne(&req)

	responses := drainResponses(rspRing)
	require.Len(t, responses, 1)
	assert.Equal(t, wire.ResponseTypeInvalid, responses[0].Type)
	assert.Equal(t, 0, mdRing.Len())
}

func TestEngine_RunStopsOnSignal(t *testing.T) {
	reqRing := ring.New[wire.ClientRequest](4)
	rspRing := ring.New[wire.ClientResponse](4)
	mdRing := ring.New[wire.MarketUpdate](4)
	eng := New(1, 8, 32, reqRing, rspRing, mdRing)

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		eng.Run(stop)
		close(done)
	}()

	*reqRing.ReserveWrite() = wire.ClientRequest{Type: wire.RequestTypeNew, ClientId: 1, TickerId: 0, ClientOrderId: 1, Side: types.SideBuy, Price: 100, Qty: 10}
	reqRing.CommitWrite()

	close(stop)
	<-done
}
