package wire

import (
	"fmt"

	"github.com/rishavpaul/matchcore/internal/types"
)

// Bounds are the structural admission limits a decoded ClientRequest is
// checked against before it reaches the matching engine: configured size
// bounds, not a cross-instrument risk model (spec Non-goals exclude
// cross-instrument risk checks; this is wire-level sanity only).
type Bounds struct {
	MaxQty   types.Qty
	MaxPrice types.Price
}

// Validate reports the first structural problem with req, or nil. It
// never inspects account history or cross-instrument exposure: it only
// checks the fields of this one request against configured bounds.
func (b Bounds) Validate(req *ClientRequest) error {
	if req.Type != RequestTypeNew && req.Type != RequestTypeCancel {
		return fmt.Errorf("unknown request type %d", req.Type)
	}
	if req.Side != types.SideBuy && req.Side != types.SideSell {
		return fmt.Errorf("invalid side %d", req.Side)
	}
	if req.Type == RequestTypeNew {
		// qty == 0 is deliberately not rejected here: per the OPEN
		// QUESTION decision (SPEC_FULL.md), a zero-quantity NEW must
		// still reach OrderBook.Add so the engine can emit the
		// documented INVALID response, rather than being silently
		// dropped at the gateway.
		if req.Qty == types.QtyInvalid {
			return fmt.Errorf("invalid qty %s", req.Qty)
		}
		if b.MaxQty != 0 && req.Qty > b.MaxQty {
			return fmt.Errorf("qty %s exceeds max-qty %s", req.Qty, b.MaxQty)
		}
		if req.Price <= 0 || req.Price == types.PriceInvalid {
			return fmt.Errorf("invalid price %s", req.Price)
		}
		if b.MaxPrice != 0 && req.Price > b.MaxPrice {
			return fmt.Errorf("price %s exceeds max-price %s", req.Price, b.MaxPrice)
		}
	}
	return nil
}
