// Package orderbook implements the per-instrument price-time-priority
// limit order book (§3, §4.3): the core of the matching engine.
//
// Both price levels and orders are identified by stable array/pool
// indices rather than pointers (§9 Design Notes), so that the circular
// doubly-linked lists they form — price levels per side, orders within a
// level — never alias an owning reference. A price level lives in a
// fixed-size array of K slots addressed directly by `price mod K`
// (never a balanced tree or hash map): collisions are a caller-enforced
// invariant, asserted on detection (§9).
package orderbook

import (
	"fmt"

	"github.com/rishavpaul/matchcore/internal/pool"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

const noLevel = -1

// priceLevel is one slot of the direct-addressed `price mod K` index.
// prevIdx/nextIdx are indices into the same fixed-size array (bids and
// asks each have their own array), forming a circular doubly-linked list
// ordered by price: descending for bids, ascending for asks. A single
// live level has prevIdx == nextIdx == its own index (self-loop
// sentinel).
type priceLevel struct {
	inUse        bool
	price        types.Price
	headOrderIdx int
	prevIdx      int
	nextIdx      int
}

// orderNode is one pool-allocated resting order. prevIdx/nextIdx link it
// to its siblings at the same price level, in arrival order; levelIdx
// names the price level (an index into the book's per-side level array)
// it currently rests on.
type orderNode struct {
	clientId      types.ClientId
	clientOrderId types.OrderId
	marketOrderId types.OrderId
	side          types.Side
	price         types.Price
	qty           types.Qty
	priority      types.Priority
	levelIdx      int
	prevIdx       int
	nextIdx       int
}

// Sink is the narrow output capability an Order Book is given at
// construction (§9 Design Notes: "replace [the back-pointer to the
// matching engine] with a narrow output-sink capability"). The book
// never holds a reference back to its owner; it only calls these two
// functions to emit client responses and public market updates.
type Sink struct {
	SendResponse     func(wire.ClientResponse)
	SendMarketUpdate func(wire.MarketUpdate)
}

// orderKey identifies a resting order by the pair the client used to
// place it, for O(1) cancel lookup (§3 invariant 6).
type orderKey struct {
	client types.ClientId
	order  types.OrderId
}

// OrderBook is the price-time-priority book for a single ticker.
type OrderBook struct {
	ticker types.TickerId
	k      int

	bids []priceLevel
	asks []priceLevel

	bidHead int
	askHead int

	orders *pool.Pool[orderNode]
	index  map[orderKey]int // -> index into orders

	nextMarketOrderId types.OrderId

	sink Sink
}

// New builds an empty book for ticker, with a price-level index of size
// maxPriceLevels and an order pool of size maxOrders. maxPriceLevels
// must exceed the number of simultaneously live distinct prices on
// either side (§3 invariant 1, §9).
func New(ticker types.TickerId, maxPriceLevels, maxOrders int, sink Sink) *OrderBook {
	bids := make([]priceLevel, maxPriceLevels)
	asks := make([]priceLevel, maxPriceLevels)
	for i := range bids {
		bids[i].headOrderIdx = noLevel
		asks[i].headOrderIdx = noLevel
	}
	return &OrderBook{
		ticker:            ticker,
		k:                 maxPriceLevels,
		bids:              bids,
		asks:              asks,
		bidHead:           noLevel,
		askHead:           noLevel,
		orders:            pool.New[orderNode](maxOrders),
		index:             make(map[orderKey]int),
		nextMarketOrderId: 1,
		sink:              sink,
	}
}

func (b *OrderBook) levelsFor(side types.Side) ([]priceLevel, *int) {
	if side == types.SideBuy {
		return b.bids, &b.bidHead
	}
	return b.asks, &b.askHead
}

func (b *OrderBook) levelIndex(price types.Price) int {
	return int(price) % b.k
}

// BestBid returns the best (highest) resting bid price and whether one
// exists.
func (b *OrderBook) BestBid() (types.Price, bool) {
	if b.bidHead == noLevel {
		return types.PriceInvalid, false
	}
	return b.bids[b.bidHead].price, true
}

// BestAsk returns the best (lowest) resting ask price and whether one
// exists.
func (b *OrderBook) BestAsk() (types.Price, bool) {
	if b.askHead == noLevel {
		return types.PriceInvalid, false
	}
	return b.asks[b.askHead].price, true
}

// RestingOrders reports how many orders are currently resting in the
// book. Safe for an external metrics scrape; reads the pool's live-slot
// count rather than walking price levels.
func (b *OrderBook) RestingOrders() int {
	return b.orders.Len()
}

// IsEmpty reports whether the book holds no resting orders at all (both
// side heads absent, the cancel index empty, every pool slot free) —
// the state the round-trip property in §8 requires after cancelling
// every resting order.
func (b *OrderBook) IsEmpty() bool {
	return b.bidHead == noLevel && b.askHead == noLevel && len(b.index) == 0 && b.orders.Len() == 0
}

// insertLevel finds or creates the price level for (side, price) and
// returns its index. If the level is new it is spliced into the side's
// ordered circular list and, if it becomes the new best, the side-
// specific head is updated — never the other side's, fixing the source
// bug Design Notes §9 calls out ("a suspicious fallback that assigns the
// new head to the wrong side").
func (b *OrderBook) insertLevel(side types.Side, price types.Price) int {
	levels, headPtr := b.levelsFor(side)
	idx := b.levelIndex(price)
	if levels[idx].inUse {
		if levels[idx].price != price {
			panic(fmt.Sprintf("orderbook: price-level index collision at %d (existing price %s, new price %s)", idx, levels[idx].price, price))
		}
		return idx
	}

	levels[idx] = priceLevel{
		inUse:        true,
		price:        price,
		headOrderIdx: noLevel,
		prevIdx:      idx,
		nextIdx:      idx,
	}

	descending := side == types.SideBuy
	insertIntoSideList(levels, headPtr, idx, descending)
	return idx
}

// insertIntoSideList splices level idx into the circular list rooted at
// *headPtr, preserving descending (bids) or ascending (asks) price
// order, and updates *headPtr if idx becomes the new best.
func insertIntoSideList(levels []priceLevel, headPtr *int, idx int, descending bool) {
	head := *headPtr
	if head == noLevel {
		*headPtr = idx
		return
	}

	newPrice := levels[idx].price
	better := func(a, b types.Price) bool {
		if descending {
			return a > b
		}
		return a < b
	}

	if better(newPrice, levels[head].price) {
		tail := levels[head].prevIdx
		levels[idx].prevIdx = tail
		levels[idx].nextIdx = head
		levels[tail].nextIdx = idx
		levels[head].prevIdx = idx
		*headPtr = idx
		return
	}

	cur := head
	for {
		next := levels[cur].nextIdx
		if next == head {
			levels[idx].prevIdx = cur
			levels[idx].nextIdx = head
			levels[cur].nextIdx = idx
			levels[head].prevIdx = idx
			return
		}
		if better(newPrice, levels[next].price) {
			levels[idx].prevIdx = cur
			levels[idx].nextIdx = next
			levels[cur].nextIdx = idx
			levels[next].prevIdx = idx
			return
		}
		cur = next
	}
}

// removeLevel unlinks price level idx from its side's circular list
// (updating the head if needed) and marks the slot free.
func removeLevel(levels []priceLevel, headPtr *int, idx int) {
	prev := levels[idx].prevIdx
	if prev == idx {
		*headPtr = noLevel
	} else {
		next := levels[idx].nextIdx
		levels[prev].nextIdx = next
		levels[next].prevIdx = prev
		if *headPtr == idx {
			*headPtr = next
		}
	}
	levels[idx] = priceLevel{headOrderIdx: noLevel, prevIdx: idx, nextIdx: idx}
}

// appendOrder splices a newly allocated order onto the tail of level
// idx's sibling list (FIFO arrival order, §4.3 "new orders are appended
// at the tail").
func (b *OrderBook) appendOrder(levels []priceLevel, levelIdx, orderIdx int) {
	lvl := &levels[levelIdx]
	node := b.orders.Get(orderIdx)
	if lvl.headOrderIdx == noLevel {
		lvl.headOrderIdx = orderIdx
		node.prevIdx = orderIdx
		node.nextIdx = orderIdx
		return
	}
	head := lvl.headOrderIdx
	tail := b.orders.Get(head).prevIdx
	node.prevIdx = tail
	node.nextIdx = head
	b.orders.Get(tail).nextIdx = orderIdx
	b.orders.Get(head).prevIdx = orderIdx
}

// unlinkOrder removes orderIdx from its price level's sibling list and
// reports whether the level is now empty.
func (b *OrderBook) unlinkOrder(levels []priceLevel, levelIdx, orderIdx int) bool {
	lvl := &levels[levelIdx]
	node := b.orders.Get(orderIdx)
	prev := node.prevIdx
	if prev == orderIdx {
		lvl.headOrderIdx = noLevel
		return true
	}
	next := node.nextIdx
	b.orders.Get(prev).nextIdx = next
	b.orders.Get(next).prevIdx = prev
	if lvl.headOrderIdx == orderIdx {
		lvl.headOrderIdx = next
	}
	return false
}

func minQty(a, b types.Qty) types.Qty {
	if a < b {
		return a
	}
	return b
}

// Add processes a NEW request (§4.3). price and qty are assumed to have
// already passed structural validation (wire.Bounds); qty == 0 is
// rejected here rather than accepted, per SPEC_FULL.md's Open Question
// decision: a no-op NEW should never consume a market-order-id.
func (b *OrderBook) Add(client types.ClientId, clientOrderId types.OrderId, side types.Side, price types.Price, qty types.Qty) {
	if qty == 0 {
		b.sink.SendResponse(wire.ClientResponse{
			Type:          wire.ResponseTypeInvalid,
			ClientId:      client,
			TickerId:      b.ticker,
			ClientOrderId: clientOrderId,
			MarketOrderId: types.OrderIdInvalid,
			Side:          side,
			Price:         price,
			ExecQty:       0,
			LeavesQty:     0,
		})
		return
	}

	marketOrderId := b.nextMarketOrderId
	b.nextMarketOrderId++

	b.sink.SendResponse(wire.ClientResponse{
		Type:          wire.ResponseTypeAccepted,
		ClientId:      client,
		TickerId:      b.ticker,
		ClientOrderId: clientOrderId,
		MarketOrderId: marketOrderId,
		Side:          side,
		Price:         price,
		ExecQty:       0,
		LeavesQty:     qty,
	})

	leaves := b.match(side, price, qty, client, clientOrderId, marketOrderId)
	if leaves == 0 {
		return
	}

	levelIdx := b.insertLevel(side, price)
	levels, _ := b.levelsFor(side)
	lvl := &levels[levelIdx]

	var priority types.Priority
	if lvl.headOrderIdx == noLevel {
		priority = 1
	} else {
		tail := b.orders.Get(lvl.headOrderIdx).prevIdx
		priority = b.orders.Get(tail).priority + 1
	}

	orderIdx := b.orders.Alloc()
	node := b.orders.Get(orderIdx)
	node.clientId = client
	node.clientOrderId = clientOrderId
	node.marketOrderId = marketOrderId
	node.side = side
	node.price = price
	node.qty = leaves
	node.priority = priority
	node.levelIdx = levelIdx

	b.appendOrder(levels, levelIdx, orderIdx)
	b.index[orderKey{client, clientOrderId}] = orderIdx

	b.sink.SendMarketUpdate(wire.MarketUpdate{
		Type:     wire.MarketUpdateAdd,
		OrderId:  marketOrderId,
		TickerId: b.ticker,
		Side:     side,
		Price:    price,
		Qty:      leaves,
		Priority: priority,
	})
}

// match runs the matching procedure of §4.3 against the opposite side
// and returns the aggressor's remaining (unfilled) quantity.
func (b *OrderBook) match(side types.Side, price types.Price, qty types.Qty, client types.ClientId, clientOrderId types.OrderId, marketOrderId types.OrderId) types.Qty {
	remaining := qty
	oppSide := side.Opposite()
	oppLevels, oppHeadPtr := b.levelsFor(oppSide)

	for remaining > 0 {
		head := *oppHeadPtr
		if head == noLevel {
			break
		}
		lvl := &oppLevels[head]

		var crosses bool
		if side == types.SideBuy {
			crosses = price >= lvl.price
		} else {
			crosses = price <= lvl.price
		}
		if !crosses {
			break
		}

		restingIdx := lvl.headOrderIdx
		resting := b.orders.Get(restingIdx)

		fill := minQty(remaining, resting.qty)
		remaining -= fill
		resting.qty -= fill

		b.sink.SendResponse(wire.ClientResponse{
			Type:          wire.ResponseTypeFilled,
			ClientId:      client,
			TickerId:      b.ticker,
			ClientOrderId: clientOrderId,
			MarketOrderId: marketOrderId,
			Side:          side,
			Price:         lvl.price,
			ExecQty:       fill,
			LeavesQty:     remaining,
		})
		b.sink.SendResponse(wire.ClientResponse{
			Type:          wire.ResponseTypeFilled,
			ClientId:      resting.clientId,
			TickerId:      b.ticker,
			ClientOrderId: resting.clientOrderId,
			MarketOrderId: resting.marketOrderId,
			Side:          oppSide,
			Price:         lvl.price,
			ExecQty:       fill,
			LeavesQty:     resting.qty,
		})
		b.sink.SendMarketUpdate(wire.MarketUpdate{
			Type:     wire.MarketUpdateTrade,
			OrderId:  types.OrderIdInvalid,
			TickerId: b.ticker,
			Side:     side,
			Price:    lvl.price,
			Qty:      fill,
		})

		if resting.qty == 0 {
			b.sink.SendMarketUpdate(wire.MarketUpdate{
				Type:     wire.MarketUpdateCancel,
				OrderId:  resting.marketOrderId,
				TickerId: b.ticker,
				Side:     oppSide,
				Price:    lvl.price,
				Qty:      0,
				Priority: resting.priority,
			})
			delete(b.index, orderKey{resting.clientId, resting.clientOrderId})
			levelEmpty := b.unlinkOrder(oppLevels, head, restingIdx)
			b.orders.Free(restingIdx)
			if levelEmpty {
				removeLevel(oppLevels, oppHeadPtr, head)
			}
		} else {
			b.sink.SendMarketUpdate(wire.MarketUpdate{
				Type:     wire.MarketUpdateModify,
				OrderId:  resting.marketOrderId,
				TickerId: b.ticker,
				Side:     oppSide,
				Price:    lvl.price,
				Qty:      resting.qty,
				Priority: resting.priority,
			})
		}
	}

	return remaining
}

// Cancel processes a CANCEL request (§4.3).
func (b *OrderBook) Cancel(client types.ClientId, clientOrderId types.OrderId) {
	orderIdx, ok := b.index[orderKey{client, clientOrderId}]
	if !ok {
		b.sink.SendResponse(wire.ClientResponse{
			Type:          wire.ResponseTypeCancelRejected,
			ClientId:      client,
			TickerId:      b.ticker,
			ClientOrderId: clientOrderId,
			MarketOrderId: types.OrderIdInvalid,
			Side:          types.SideInvalid,
			Price:         types.PriceInvalid,
		})
		return
	}

	node := b.orders.Get(orderIdx)
	side := node.side
	price := node.price
	qty := node.qty
	marketOrderId := node.marketOrderId
	priority := node.priority
	levelIdx := node.levelIdx

	b.sink.SendResponse(wire.ClientResponse{
		Type:          wire.ResponseTypeCanceled,
		ClientId:      client,
		TickerId:      b.ticker,
		ClientOrderId: clientOrderId,
		MarketOrderId: marketOrderId,
		Side:          side,
		Price:         price,
		ExecQty:       0,
		LeavesQty:     qty,
	})
	b.sink.SendMarketUpdate(wire.MarketUpdate{
		Type:     wire.MarketUpdateCancel,
		OrderId:  marketOrderId,
		TickerId: b.ticker,
		Side:     side,
		Price:    price,
		Qty:      qty,
		Priority: priority,
	})

	levels, headPtr := b.levelsFor(side)
	levelEmpty := b.unlinkOrder(levels, levelIdx, orderIdx)
	delete(b.index, orderKey{client, clientOrderId})
	b.orders.Free(orderIdx)
	if levelEmpty {
		removeLevel(levels, headPtr, levelIdx)
	}
}
