// Package matching implements the Matching Engine task (§4.4): it owns
// one Order Book per ticker and, in a tight polling loop, dispatches
// each request off the request ring to the correct book, publishing
// responses and market updates onto their own rings. No shared state
// with any other task except the three rings it touches.
package matching

import (
	"fmt"
	"time"

	"github.com/rishavpaul/matchcore/internal/logging"
	"github.com/rishavpaul/matchcore/internal/orderbook"
	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// Engine dispatches client requests to per-ticker order books.
type Engine struct {
	books              []*orderbook.OrderBook
	maxPriceLevels     int
	maxOrdersPerTicker int

	reqRing *ring.Ring[wire.ClientRequest]
	rspRing *ring.Ring[wire.ClientResponse]
	mdRing  *ring.Ring[wire.MarketUpdate]

	events *logging.EventBatcher
}

// SetEvents attaches an audit sink: every response the engine emits is
// also reported to it. Optional; a nil or never-called engine reports
// nothing.
func (e *Engine) SetEvents(events *logging.EventBatcher) {
	e.events = events
}

// New builds an engine with one book per ticker in [0, maxTickers),
// wired to publish onto rspRing and mdRing and to consume from reqRing.
func New(maxTickers, maxPriceLevels, maxOrdersPerTicker int, reqRing *ring.Ring[wire.ClientRequest], rspRing *ring.Ring[wire.ClientResponse], mdRing *ring.Ring[wire.MarketUpdate]) *Engine {
	e := &Engine{
		books:              make([]*orderbook.OrderBook, maxTickers),
		maxPriceLevels:     maxPriceLevels,
		maxOrdersPerTicker: maxOrdersPerTicker,
		reqRing:            reqRing,
		rspRing:            rspRing,
		mdRing:             mdRing,
	}
	sink := orderbook.Sink{
		SendResponse:     e.sendResponse,
		SendMarketUpdate: e.sendMarketUpdate,
	}
	for t := range e.books {
		e.books[t] = orderbook.New(types.TickerId(t), maxPriceLevels, maxOrdersPerTicker, sink)
	}
	return e
}

func (e *Engine) sendResponse(resp wire.ClientResponse) {
	*e.rspRing.ReserveWrite() = resp
	e.rspRing.CommitWrite()
	e.reportEvent(resp)
}

func (e *Engine) reportEvent(resp wire.ClientResponse) {
	if e.events == nil {
		return
	}
	var eventType logging.EventType
	switch resp.Type {
	case wire.ResponseTypeAccepted:
		eventType = logging.EventOrderAccepted
	case wire.ResponseTypeFilled:
		eventType = logging.EventOrderFilled
	case wire.ResponseTypeCanceled:
		eventType = logging.EventOrderCanceled
	default:
		eventType = logging.EventOrderRejected
	}
	e.events.Report(logging.Event{
		Type:          eventType,
		Time:          time.Now(),
		ClientId:      resp.ClientId,
		TickerId:      resp.TickerId,
		ClientOrderId: resp.ClientOrderId,
		MarketOrderId: resp.MarketOrderId,
		Price:         resp.Price,
		Qty:           resp.ExecQty,
	})
}

func (e *Engine) sendMarketUpdate(upd wire.MarketUpdate) {
	*e.mdRing.ReserveWrite() = upd
	e.mdRing.CommitWrite()
}

// RestingOrders returns the number of resting orders in ticker's book,
// or 0 if ticker is out of range. Safe for an external metrics scrape.
func (e *Engine) RestingOrders(ticker types.TickerId) int {
	book := e.bookFor(ticker)
	if book == nil {
		return 0
	}
	return book.RestingOrders()
}

// Tickers returns the number of per-ticker books the engine holds.
func (e *Engine) Tickers() int {
	return len(e.books)
}

// bookFor returns the book for ticker, or nil if the ticker is out of
// the configured range.
func (e *Engine) bookFor(ticker types.TickerId) *orderbook.OrderBook {
	if int(ticker) >= len(e.books) {
		return nil
	}
	return e.books[ticker]
}

// processOne dispatches a single decoded request. An unknown ticker, for
// a NEW or a CANCEL alike, reports an INVALID response rather than
// crashing the engine — it is a protocol violation (§7), not a resource
// or invariant failure.
func (e *Engine) processOne(req *wire.ClientRequest) {
	book := e.bookFor(req.TickerId)
	if book == nil {
		e.sendResponse(wire.ClientResponse{
			Type:          wire.ResponseTypeInvalid,
			ClientId:      req.ClientId,
			TickerId:      req.TickerId,
			ClientOrderId: req.ClientOrderId,
			MarketOrderId: types.OrderIdInvalid,
			Side:          req.Side,
			Price:         req.Price,
		})
		return
	}

	switch req.Type {
	case wire.RequestTypeNew:
		book.Add(req.ClientId, req.ClientOrderId, req.Side, req.Price, req.Qty)
	case wire.RequestTypeCancel:
		book.Cancel(req.ClientId, req.ClientOrderId)
	default:
		panic(fmt.Sprintf("matching: unknown request type %d", req.Type))
	}
}

// Run peeks the request ring in a tight loop; whenever a request is
// present it dispatches it and commits the read. It returns when stop
// is closed — the single-boolean-run-flag shutdown pattern of §5,
// expressed as a channel since that is the idiomatic Go equivalent of a
// flag checked at the top of the loop.
func (e *Engine) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}
		req := e.reqRing.PeekRead()
		if req == nil {
			continue
		}
		e.processOne(req)
		e.reqRing.CommitRead()
	}
}
