// Package marketdata turns the matching engine's internal market-update
// stream into the two public multicast feeds: a numbered incremental
// feed and a periodically republished full-book snapshot (§4.7, §4.8).
package marketdata

import (
	"net"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// Publisher is the MD Publisher task: it numbers every market update
// coming out of the matching engine, sends it on the incremental
// multicast group, and forwards a copy to the Snapshot Synthesiser over
// an internal ring.
//
// Grounded on the original's MarketDataPublisher (next_inc_seq_num_,
// outgoing_md_updates_ read loop, a forwarding queue to the snapshot
// synthesizer).
type Publisher struct {
	nextSeq uint64

	mdRing      *ring.Ring[wire.MarketUpdate]
	synthRing   *ring.Ring[wire.PublicMessage]
	incremental *net.UDPConn

	sendBuf [wire.PublicMessageSize]byte
}

// NewPublisher wires a publisher reading updates off mdRing, forwarding
// numbered copies to synthRing, and writing the incremental wire format
// to incremental.
func NewPublisher(mdRing *ring.Ring[wire.MarketUpdate], synthRing *ring.Ring[wire.PublicMessage], incremental *net.UDPConn) *Publisher {
	return &Publisher{
		nextSeq:     1,
		mdRing:      mdRing,
		synthRing:   synthRing,
		incremental: incremental,
	}
}

// Run drains mdRing until stop is signalled, numbering and republishing
// each update (§4.7). Checked once per iteration, matching every other
// task's run-flag convention.
func (p *Publisher) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		upd := p.mdRing.PeekRead()
		if upd == nil {
			continue
		}
		p.publish(*upd)
		p.mdRing.CommitRead()
	}
}

func (p *Publisher) publish(upd wire.MarketUpdate) {
	msg := wire.PublicMessage{SeqNum: p.nextSeq, Update: upd}

	msg.Encode(p.sendBuf[:])
	_, _ = p.incremental.Write(p.sendBuf[:])

	*p.synthRing.ReserveWrite() = msg
	p.synthRing.CommitWrite()

	p.nextSeq++
}
