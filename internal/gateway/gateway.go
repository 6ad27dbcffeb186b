// Package gateway is the Order Server: it terminates client TCP
// sessions, decodes/encodes the wire frames (§6), and feeds validated
// requests through the Sequencer so the matching engine sees one
// arrival-ordered stream regardless of how many sockets are readable in
// a given poll cycle (§4.6).
//
// The original's single event-driven polling loop (edge-triggered
// epoll, MSG_DONTWAIT) is realized the idiomatic-Go way: one goroutine
// per connection reads frames and timestamps them, publishing onto a
// channel; a single sequencer goroutine drains that channel once per
// cycle and hands the batch to the Sequencer. Go's netpoller is already
// doing the non-blocking multiplexing the original's raw epoll loop did
// explicitly.
package gateway

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rishavpaul/matchcore/internal/ring"
	"github.com/rishavpaul/matchcore/internal/sequencer"
	"github.com/rishavpaul/matchcore/internal/types"
	"github.com/rishavpaul/matchcore/internal/wire"
)

// clientState is the per-client-id session the gateway tracks across
// reconnects: sequence counters survive a dropped and re-established
// socket for the same client-id (§4.6).
type clientState struct {
	mu          sync.Mutex
	sessionId   uuid.UUID
	conn        net.Conn
	lastRecvSeq uint64
	lastSentSeq uint64
}

type timestampedFrame struct {
	recvTimeNanos int64
	request       wire.ClientRequest
}

// Server is the Order Server task.
type Server struct {
	ln     net.Listener
	bounds wire.Bounds
	seq    *sequencer.Sequencer
	rsp    *ring.Ring[wire.ClientResponse]
	logger zerolog.Logger

	mu      sync.Mutex
	clients map[types.ClientId]*clientState

	incoming chan timestampedFrame
}

// NewServer builds an Order Server listening on ln, validating requests
// against bounds, buffering them through seq, and relaying responses
// read off rsp back to their originating client connection.
func NewServer(ln net.Listener, bounds wire.Bounds, seq *sequencer.Sequencer, rsp *ring.Ring[wire.ClientResponse], logger zerolog.Logger) *Server {
	return &Server{
		ln:       ln,
		bounds:   bounds,
		seq:      seq,
		rsp:      rsp,
		logger:   logger,
		clients:  make(map[types.ClientId]*clientState),
		incoming: make(chan timestampedFrame, 4096),
	}
}

// Run starts the accept loop, the sequencer-drain loop, and the
// response-dispatch loop, and blocks until stop is closed.
func (s *Server) Run(stop <-chan struct{}) {
	go s.acceptLoop(stop)
	go s.sequenceLoop(stop)
	s.dispatchResponses(stop)
}

func (s *Server) acceptLoop(stop <-chan struct{}) {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return
			default:
				s.logger.Warn().Err(err).Msg("accept failed")
				continue
			}
		}
		go s.handleConn(conn, stop)
	}
}

// handleConn reads fixed-size request frames off one TCP connection
// until it errs or closes, timestamping each and handing it to the
// shared sequencing channel.
func (s *Server) handleConn(conn net.Conn, stop <-chan struct{}) {
	sessionId := uuid.New()
	buf := make([]byte, wire.RequestFrameSize)
	var boundClientId types.ClientId
	var bound bool

	for {
		if _, err := io.ReadFull(conn, buf); err != nil {
			s.logger.Info().Str("session", sessionId.String()).Err(err).Msg("connection closed")
			conn.Close()
			if bound {
				s.unbind(boundClientId, conn)
			}
			return
		}

		var frame wire.RequestFrame
		frame.Decode(buf)
		recvTime := time.Now().UnixNano()

		if !s.admit(sessionId, conn, frame) {
			continue
		}
		boundClientId, bound = frame.Request.ClientId, true

		select {
		case s.incoming <- timestampedFrame{recvTimeNanos: recvTime, request: frame.Request}:
		case <-stop:
			conn.Close()
			if bound {
				s.unbind(boundClientId, conn)
			}
			return
		}
	}
}

// unbind releases conn's hold on clientId's bound socket, but only if
// conn is still the bound socket — a newer connection may already have
// taken its place. Lets a client reconnect on a fresh socket after a
// dropped connection, rather than being locked out by the
// never-rebind-while-bound guard in admit forever.
func (s *Server) unbind(clientId types.ClientId, conn net.Conn) {
	state := s.stateFor(clientId)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.conn == conn {
		state.conn = nil
	}
}

// admit validates the frame's sequence number and bounds, and binds the
// client-id to this connection for response routing. A bad sequence
// number or a malformed request is a protocol violation: the record is
// silently dropped, not fatal (§7).
//
// A client-id is bound to the first socket it is seen on; any record
// arriving on a different socket for an already-bound client-id is
// dropped rather than rebinding, since a client may not multiplex
// across sockets (§4.6, ported from
// `order_server.h`'s `cid_tcp_socket_[...] != socket` guard).
func (s *Server) admit(sessionId uuid.UUID, conn net.Conn, frame wire.RequestFrame) bool {
	if err := s.bounds.Validate(&frame.Request); err != nil {
		s.logger.Debug().Err(err).Msg("rejected malformed request")
		return false
	}

	state := s.stateFor(frame.Request.ClientId)

	state.mu.Lock()
	defer state.mu.Unlock()

	if state.conn != nil && state.conn != conn {
		s.logger.Debug().Uint32("client_id", uint32(frame.Request.ClientId)).Msg("dropping record from unbound socket")
		return false
	}

	if frame.Seq != state.lastRecvSeq+1 {
		s.logger.Debug().Uint64("got", frame.Seq).Uint64("want", state.lastRecvSeq+1).Msg("dropping out-of-sequence frame")
		return false
	}
	state.lastRecvSeq = frame.Seq
	state.sessionId = sessionId
	state.conn = conn
	return true
}

func (s *Server) stateFor(clientId types.ClientId) *clientState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.clients[clientId]
	if !ok {
		st = &clientState{}
		s.clients[clientId] = st
	}
	return st
}

// sequenceLoop is the single sequencer goroutine (§4.5): each cycle it
// drains whatever has accumulated on the incoming channel since the
// last cycle, then publishes the batch in receive-timestamp order.
func (s *Server) sequenceLoop(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case tf := <-s.incoming:
			s.seq.Add(tf.recvTimeNanos, tf.request)
			s.drainAvailable()
			s.seq.SequenceAndPublish()
		}
	}
}

func (s *Server) drainAvailable() {
	for {
		select {
		case tf := <-s.incoming:
			s.seq.Add(tf.recvTimeNanos, tf.request)
		default:
			return
		}
	}
}

// dispatchResponses relays engine responses back to their client's
// bound connection, assigning each client its own monotonic send
// sequence number.
func (s *Server) dispatchResponses(stop <-chan struct{}) {
	buf := make([]byte, wire.ResponseFrameSize)
	for {
		select {
		case <-stop:
			return
		default:
		}

		resp := s.rsp.PeekRead()
		if resp == nil {
			continue
		}
		s.sendResponse(*resp, buf)
		s.rsp.CommitRead()
	}
}

func (s *Server) sendResponse(resp wire.ClientResponse, buf []byte) {
	state := s.stateFor(resp.ClientId)

	state.mu.Lock()
	conn := state.conn
	if conn == nil {
		state.mu.Unlock()
		return // client never connected, or reconnect pending: drop silently
	}
	state.lastSentSeq++
	frame := wire.ResponseFrame{Seq: state.lastSentSeq, Response: resp}
	state.mu.Unlock()

	frame.Encode(buf)
	if _, err := conn.Write(buf); err != nil {
		s.logger.Debug().Err(err).Uint32("client_id", uint32(resp.ClientId)).Msg("response write failed")
	}
}
