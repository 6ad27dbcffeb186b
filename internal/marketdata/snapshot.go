package marketdata

import (
	"net"
	"sync/atomic"
	"time"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// mirrorOrder is the Synthesiser's recollection of one resting order,
// keyed by (ticker, market-order-id) (§4.8).
type mirrorOrder struct {
	side  types.Side
	price types.Price
	qty   types.Qty
	prio  types.Priority
}

// Synthesiser is the Snapshot Synthesiser task: it mirrors every
// resting order by applying the same incrementals the Publisher just
// numbered, and periodically republishes the full mirror as a bracketed
// snapshot cycle over its own multicast group.
//
// Grounded on the original's SnapshotSynthesizer (ticker_orders_ mirror,
// last_inc_seq_num_, periodic run loop); the map-of-maps ledger shape
// updated in place is the same pattern the teacher's clearing house used
// for account/symbol positions, repurposed here to order mirrors.
type Synthesiser struct {
	maxTickers int
	mirror     []map[types.OrderId]mirrorOrder

	lastAppliedSeq uint64
	period         time.Duration
	clock          func() time.Time
	lastSnapshot   time.Time

	in       *ring.Ring[wire.PublicMessage]
	snapshot *net.UDPConn

	sendBuf [wire.PublicMessageSize]byte

	cycles uint64
}

// NewSynthesiser builds a synthesiser for maxTickers books, consuming
// from in and publishing snapshot cycles every period over snapshot.
func NewSynthesiser(maxTickers int, in *ring.Ring[wire.PublicMessage], snapshot *net.UDPConn, period time.Duration) *Synthesiser {
	mirror := make([]map[types.OrderId]mirrorOrder, maxTickers)
	for i := range mirror {
		mirror[i] = make(map[types.OrderId]mirrorOrder)
	}
	return &Synthesiser{
		maxTickers: maxTickers,
		mirror:     mirror,
		period:     period,
		clock:      time.Now,
		in:         in,
		snapshot:   snapshot,
	}
}

// Run drains the Publisher-to-Synthesiser ring, applying each message
// to the mirror, and emits a snapshot cycle whenever period has elapsed
// since the last one.
func (s *Synthesiser) Run(stop <-chan struct{}) {
	s.lastSnapshot = s.clock()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if msg := s.in.PeekRead(); msg != nil {
			s.apply(*msg)
			s.in.CommitRead()
		}

		if s.clock().Sub(s.lastSnapshot) >= s.period {
			s.publishSnapshot()
			s.lastSnapshot = s.clock()
		}
	}
}

// apply applies one incremental to the mirror. Gaps in the incremental
// sequence are fatal: the mirror's correctness depends on having applied
// every update exactly once, in order (§4.8 invariant).
func (s *Synthesiser) apply(msg wire.PublicMessage) {
	if s.lastAppliedSeq != 0 && msg.SeqNum != s.lastAppliedSeq+1 {
		panic("marketdata: gap in incremental sequence applied to snapshot mirror")
	}
	if s.lastAppliedSeq == 0 && msg.SeqNum != 1 {
		panic("marketdata: incremental sequence must start at 1")
	}
	s.lastAppliedSeq = msg.SeqNum

	u := msg.Update
	if int(u.TickerId) >= s.maxTickers {
		return
	}
	mirror := s.mirror[u.TickerId]

	switch u.Type {
	case wire.MarketUpdateAdd:
		mirror[u.OrderId] = mirrorOrder{side: u.Side, price: u.Price, qty: u.Qty, prio: u.Priority}
	case wire.MarketUpdateModify:
		if entry, ok := mirror[u.OrderId]; ok {
			entry.qty = u.Qty
			entry.price = u.Price
			mirror[u.OrderId] = entry
		}
	case wire.MarketUpdateCancel:
		delete(mirror, u.OrderId)
	case wire.MarketUpdateTrade, wire.MarketUpdateSnapshotStart, wire.MarketUpdateSnapshotEnd,
		wire.MarketUpdateClear, wire.MarketUpdateInvalid:
		// TRADE never touches the mirror directly: the matching engine
		// always pairs it with a MODIFY or CANCEL of the resting order.
	}
}

// publishSnapshot emits one full bracketed snapshot cycle: START, one
// CLEAR+ADD* run per ticker in order, END (§4.8). The cycle's own
// sequence numbers are 0-based and unrelated to the incremental space;
// SNAPSHOT_START/END both carry lastAppliedSeq so the consumer can
// splice the snapshot with subsequent incrementals.
func (s *Synthesiser) publishSnapshot() {
	var snapSeq uint64

	s.send(&snapSeq, wire.MarketUpdate{Type: wire.MarketUpdateSnapshotStart, SeqNum: s.lastAppliedSeq})

	for ticker := 0; ticker < s.maxTickers; ticker++ {
		s.send(&snapSeq, wire.MarketUpdate{Type: wire.MarketUpdateClear, TickerId: types.TickerId(ticker)})
		for orderId, entry := range s.mirror[ticker] {
			s.send(&snapSeq, wire.MarketUpdate{
				Type:     wire.MarketUpdateAdd,
				OrderId:  orderId,
				TickerId: types.TickerId(ticker),
				Side:     entry.side,
				Price:    entry.price,
				Qty:      entry.qty,
				Priority: entry.prio,
			})
		}
	}

	s.send(&snapSeq, wire.MarketUpdate{Type: wire.MarketUpdateSnapshotEnd, SeqNum: s.lastAppliedSeq})
	atomic.AddUint64(&s.cycles, 1)
}

// Cycles reports how many snapshot cycles have been published so far.
// Safe to call concurrently with Run, for an external metrics scrape.
func (s *Synthesiser) Cycles() uint64 {
	return atomic.LoadUint64(&s.cycles)
}

func (s *Synthesiser) send(snapSeq *uint64, upd wire.MarketUpdate) {
	msg := wire.PublicMessage{SeqNum: *snapSeq, Update: upd}
	msg.Encode(s.sendBuf[:])
	_, _ = s.snapshot.Write(s.sendBuf[:])
	*snapSeq++
}
