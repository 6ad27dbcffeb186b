// Package mdconsumer implements the client-side recovery protocol a
// market-data subscriber runs against the incremental and snapshot
// multicast groups (§4.9). It has no teacher analogue in the matching
// engine itself — this is the consumer half of the wire contract the
// engine's marketdata package produces.
package mdconsumer

import (
	"github.com/google/btree"

	"github.com/rishavpaul/matchcore/internal/wire"
)

// queuedMessage pairs a sequence number with the message received at
// that sequence, ordered by sequence number in the btree queues (§4.9
// "two ordered maps ... keyed by sequence number").
type queuedMessage struct {
	seq uint64
	msg wire.PublicMessage
}

func lessBySeq(a, b queuedMessage) bool { return a.seq < b.seq }

// BookApplier is the downstream order-book sink the consumer delivers
// recovered and in-order incrementals to.
type BookApplier interface {
	Apply(wire.MarketUpdate)
}

// JoinLeaver lets the consumer join the snapshot multicast group only
// while it actually needs it (§4.9 "joins snapshot only during
// recovery").
type JoinLeaver interface {
	JoinSnapshot()
	LeaveSnapshot()
}

// Consumer runs the gap-detection and snapshot-splicing state machine.
// Single-threaded: fed by whatever goroutine reads the two multicast
// sockets, synchronously, one message at a time.
type Consumer struct {
	nextExpectedIncSeq uint64
	inRecovery         bool

	snapshotQueue    *btree.BTreeG[queuedMessage]
	incrementalQueue *btree.BTreeG[queuedMessage]

	book BookApplier
	mc   JoinLeaver
}

// New builds a consumer expecting incremental sequence 1 first,
// delivering recovered/in-order updates to book.
func New(book BookApplier, mc JoinLeaver) *Consumer {
	return &Consumer{
		nextExpectedIncSeq: 1,
		snapshotQueue:      btree.NewG(8, lessBySeq),
		incrementalQueue:   btree.NewG(8, lessBySeq),
		book:               book,
		mc:                 mc,
	}
}

// InRecovery reports whether the consumer is currently resynchronizing
// against a snapshot.
func (c *Consumer) InRecovery() bool { return c.inRecovery }

// NextExpectedSeq returns the next incremental sequence number the
// consumer expects to apply in steady state.
func (c *Consumer) NextExpectedSeq() uint64 { return c.nextExpectedIncSeq }

// OnIncremental handles one message received on the incremental group
// (§4.9 "per incoming incremental message").
func (c *Consumer) OnIncremental(msg wire.PublicMessage) {
	s := msg.SeqNum

	if c.inRecovery {
		c.incrementalQueue.ReplaceOrInsert(queuedMessage{seq: s, msg: msg})
		return
	}

	if s == c.nextExpectedIncSeq {
		c.book.Apply(msg.Update)
		c.nextExpectedIncSeq++
		return
	}

	c.enterRecovery()
	c.incrementalQueue.ReplaceOrInsert(queuedMessage{seq: s, msg: msg})
}

func (c *Consumer) enterRecovery() {
	c.inRecovery = true
	c.snapshotQueue.Clear(false)
	c.incrementalQueue.Clear(false)
	c.mc.JoinSnapshot()
}

// OnSnapshot handles one message received on the snapshot group (§4.9
// "per incoming snapshot message"). Discarded outside recovery.
func (c *Consumer) OnSnapshot(msg wire.PublicMessage) {
	if !c.inRecovery {
		return
	}
	c.snapshotQueue.ReplaceOrInsert(queuedMessage{seq: msg.SeqNum, msg: msg})
	c.tryCompleteRecovery()
}

// tryCompleteRecovery implements §4.9 steps 1-6: validate the queued
// snapshot is a complete, contiguous START..END bracket, apply it,
// splice in any already-buffered incrementals above its watermark, and
// leave recovery — or abort and wait for the next cycle.
func (c *Consumer) tryCompleteRecovery() {
	if c.snapshotQueue.Len() == 0 {
		return
	}

	first, _ := c.snapshotQueue.Min()
	if first.seq != 0 || first.msg.Update.Type != wire.MarketUpdateSnapshotStart {
		c.snapshotQueue.Clear(false)
		return
	}

	var ordered []queuedMessage
	expected := uint64(0)
	complete := false
	c.snapshotQueue.Ascend(func(item queuedMessage) bool {
		if item.seq != expected {
			return false // gap: not contiguous yet, stop walking
		}
		ordered = append(ordered, item)
		expected++
		if item.msg.Update.Type == wire.MarketUpdateSnapshotEnd {
			complete = true
			return false
		}
		return true
	})
	if !complete {
		return // more snapshot messages still pending this cycle
	}

	snapIncSeq := ordered[len(ordered)-1].msg.Update.SeqNum

	for _, item := range ordered {
		t := item.msg.Update.Type
		if t == wire.MarketUpdateSnapshotStart || t == wire.MarketUpdateSnapshotEnd {
			continue
		}
		c.book.Apply(item.msg.Update)
	}

	c.nextExpectedIncSeq = snapIncSeq + 1

	var pending []queuedMessage
	gapFound := false
	next := c.nextExpectedIncSeq
	c.incrementalQueue.Ascend(func(item queuedMessage) bool {
		if item.seq < c.nextExpectedIncSeq {
			return true // stale, covered by the snapshot already
		}
		if item.seq != next {
			gapFound = true
			return false
		}
		pending = append(pending, item)
		next++
		return true
	})
	if gapFound {
		// a gap still exists above the snapshot's watermark: stay in
		// recovery and wait for the next snapshot cycle.
		c.snapshotQueue.Clear(false)
		return
	}

	for _, item := range pending {
		c.book.Apply(item.msg.Update)
		c.nextExpectedIncSeq++
	}

	c.snapshotQueue.Clear(false)
	c.incrementalQueue.Clear(false)
	c.mc.LeaveSnapshot()
	c.inRecovery = false
}
