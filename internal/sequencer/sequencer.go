// Package sequencer implements the FIFO Sequencer (§4.5): the batch-
// phase reorder step that restores arrival-time order across many TCP
// client sessions polled in arbitrary socket-readiness order within one
// poll cycle.
package sequencer

import (
	"sort"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// timestampedRequest pairs a request with its receive timestamp,
// the unit the sequencer sorts by (§4.5).
type timestampedRequest struct {
	recvTimeNanos int64
	request       wire.ClientRequest
}

// Sequencer buffers one poll cycle's worth of requests and, once the
// cycle's reads are exhausted, publishes them onto the request ring in
// ascending receive-timestamp order. Single-threaded: owned by the
// Order Server's sequencer goroutine alone.
type Sequencer struct {
	pending []timestampedRequest
	maxSize int

	reqRing *ring.Ring[wire.ClientRequest]
}

// New builds a sequencer with a fixed pending-buffer capacity of
// maxPendingRequests (§6 "max-pending-requests: Sequencer batch size"),
// publishing onto reqRing.
func New(maxPendingRequests int, reqRing *ring.Ring[wire.ClientRequest]) *Sequencer {
	return &Sequencer{
		pending: make([]timestampedRequest, 0, maxPendingRequests),
		maxSize: maxPendingRequests,
		reqRing: reqRing,
	}
}

// Add buffers one request with its receive timestamp. Fatal on overflow
// (§4.5, §7 resource exhaustion): the buffer capacity is a configured
// load bound, not a soft limit.
func (s *Sequencer) Add(recvTimeNanos int64, req wire.ClientRequest) {
	if len(s.pending) >= s.maxSize {
		panic("sequencer: too many pending requests in one poll cycle")
	}
	s.pending = append(s.pending, timestampedRequest{recvTimeNanos, req})
}

// SequenceAndPublish stable-sorts the buffered batch by ascending
// receive timestamp and publishes each request onto the request ring in
// that order, then clears the buffer. Requests from this cycle are all
// published before SequenceAndPublish is called again for the next
// cycle — no cross-cycle reordering is attempted (§4.5).
//
// Sorting is stable rather than a plain sort: two requests that arrive
// with equal receive timestamps must still come out in the order the
// poll loop buffered them, or the FIFO guarantee the sequencer exists to
// provide would not actually hold for ties.
func (s *Sequencer) SequenceAndPublish() {
	if len(s.pending) == 0 {
		return
	}

	sort.SliceStable(s.pending, func(i, j int) bool {
		return s.pending[i].recvTimeNanos < s.pending[j].recvTimeNanos
	})

	for _, tr := range s.pending {
		*s.reqRing.ReserveWrite() = tr.request
		s.reqRing.CommitWrite()
	}
	s.pending = s.pending[:0]
}

// Len reports the number of requests currently buffered for this cycle.
func (s *Sequencer) Len() int {
	return len(s.pending)
}
