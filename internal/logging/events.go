package logging

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/rishavpaul/matchcore/internal/types"
)

// EventType names the audit-log events a task may report. This mirrors
// the event taxonomy the teacher repo persisted durably (NewOrderEvent,
// CancelOrderEvent, FillEvent, ...); here it is logging only — there is
// no replay, no checksum, no fsync, since the engine has no persistence
// or crash-recovery goal to serve (spec Non-goals).
type EventType int

const (
	EventOrderAccepted EventType = iota
	EventOrderFilled
	EventOrderCanceled
	EventOrderRejected
)

func (e EventType) String() string {
	switch e {
	case EventOrderAccepted:
		return "order_accepted"
	case EventOrderFilled:
		return "order_filled"
	case EventOrderCanceled:
		return "order_canceled"
	case EventOrderRejected:
		return "order_rejected"
	default:
		return "unknown"
	}
}

// Event is one audit-log record: an execution-report-shaped fact about
// an order, not a replayable command.
type Event struct {
	Type          EventType
	Time          time.Time
	ClientId      types.ClientId
	TickerId      types.TickerId
	ClientOrderId types.OrderId
	MarketOrderId types.OrderId
	Price         types.Price
	Qty           types.Qty
}

// EventBatcher asynchronously logs events without ever blocking its
// caller: Report enqueues onto a fixed-size channel and returns
// immediately; a background goroutine drains it and writes through the
// logger. An event is dropped (and the drop counted, readable through
// Dropped) if the queue is full — the engine's correctness never depends
// on a log line landing, per §6.
//
// Adapted from the teacher's EventBatcher, which batched events destined
// for a durable, replayable event log; this version keeps the
// non-blocking batching idiom and drops the durability machinery
// entirely.
type EventBatcher struct {
	logger  zerolog.Logger
	queue   chan Event
	dropped uint64
	done    chan struct{}
}

// NewEventBatcher starts the background drain goroutine. queueSize
// bounds how many unreported events may be buffered before new ones are
// dropped.
func NewEventBatcher(logger zerolog.Logger, queueSize int) *EventBatcher {
	b := &EventBatcher{
		logger: logger,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
	}
	go b.run()
	return b
}

// Report enqueues an event for asynchronous logging. Never blocks: if
// the queue is full the event is dropped and a counter incremented.
func (b *EventBatcher) Report(e Event) {
	select {
	case b.queue <- e:
	default:
		b.dropped++
	}
}

func (b *EventBatcher) run() {
	defer close(b.done)
	for e := range b.queue {
		b.write(e)
	}
}

func (b *EventBatcher) write(e Event) {
	b.logger.Info().
		Str("event", e.Type.String()).
		Time("ts", e.Time).
		Uint32("client_id", uint32(e.ClientId)).
		Uint32("ticker_id", uint32(e.TickerId)).
		Uint64("client_order_id", uint64(e.ClientOrderId)).
		Uint64("market_order_id", uint64(e.MarketOrderId)).
		Int64("price", int64(e.Price)).
		Uint32("qty", uint32(e.Qty)).
		Msg("order event")
}

// Dropped returns the number of events dropped so far due to a full queue.
func (b *EventBatcher) Dropped() uint64 {
	return b.dropped
}

// Close stops accepting new events and waits for the drain goroutine to
// finish flushing what's already queued.
func (b *EventBatcher) Close() {
	close(b.queue)
	<-b.done
}
