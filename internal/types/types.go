// Package types defines the fixed-width identifiers and enums shared
// across every component of the matching core: tickers, clients, orders,
// prices, quantities and priorities. Every identifier type carries a
// reserved sentinel value denoting INVALID so that zero-value structs and
// "not found" lookups never collide with a live id.
package types

import (
	"fmt"
	"math"
)

// TickerId identifies a trading instrument.
type TickerId uint32

// TickerIdInvalid is the reserved sentinel for "no ticker".
const TickerIdInvalid TickerId = math.MaxUint32

func (t TickerId) String() string {
	if t == TickerIdInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", uint32(t))
}

// ClientId identifies a connected trading client.
type ClientId uint32

// ClientIdInvalid is the reserved sentinel for "no client".
const ClientIdInvalid ClientId = math.MaxUint32

func (c ClientId) String() string {
	if c == ClientIdInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", uint32(c))
}

// OrderId identifies an order, either as assigned by the client
// (client-order-id) or by the engine (market-order-id). Both use the same
// wide unsigned type and sentinel.
type OrderId uint64

// OrderIdInvalid is the reserved sentinel for "no order". It is also the
// fixed market-order-id carried by every TRADE market update (§9: "this
// spec mandates the sentinel").
const OrderIdInvalid OrderId = math.MaxUint64

func (o OrderId) String() string {
	if o == OrderIdInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", uint64(o))
}

// Price is a signed fixed-point price in ticks. There is no implied
// decimal scaling in the core: callers agree on tick size out of band.
type Price int64

// PriceInvalid is the reserved sentinel for "no price".
const PriceInvalid Price = math.MaxInt64

// String renders the price, or "INVALID" for the sentinel.
//
// The original source this spec is drawn from has a bug here: its
// sentinel check is `if (price = Price_INVALID)`, an assignment that
// happens to also evaluate true, masking the comparison it meant to
// perform. Go's `=`/`==` are syntactically distinct so the bug class
// cannot recur, but the pure-comparison behavior is preserved explicitly.
func (p Price) String() string {
	if p == PriceInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", int64(p))
}

// Qty is an unsigned order quantity.
type Qty uint32

// QtyInvalid is the reserved sentinel for "no quantity".
const QtyInvalid Qty = math.MaxUint32

func (q Qty) String() string {
	if q == QtyInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", uint32(q))
}

// Priority is a monotonically increasing arrival index within one price
// level: lower priority values are matched first.
type Priority uint64

// PriorityInvalid is the reserved sentinel for "no priority".
const PriorityInvalid Priority = math.MaxUint64

func (p Priority) String() string {
	if p == PriorityInvalid {
		return "INVALID"
	}
	return fmt.Sprintf("%d", uint64(p))
}

// Side is the side of an order or a resting price level.
type Side int8

const (
	SideInvalid Side = 0
	SideBuy     Side = 1
	SideSell    Side = -1
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	case SideInvalid:
		return "INVALID"
	default:
		return "UNKNOWN"
	}
}

// Opposite returns the contra side. Opposite(INVALID) is INVALID.
func (s Side) Opposite() Side {
	switch s {
	case SideBuy:
		return SideSell
	case SideSell:
		return SideBuy
	default:
		return SideInvalid
	}
}
