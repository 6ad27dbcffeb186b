// Package wire defines the on-the-wire record layouts shared by the
// Order Server's TCP sessions and the Market Data Publisher/Consumer's
// multicast datagrams (§3, §6). Every record is a fixed-size,
// little-endian packed struct with no framing beyond its fixed size:
// the receiver reads exactly one record's worth of bytes at a time.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/rishavpaul/matchcore/internal/types"
)

// RequestType distinguishes NEW from CANCEL. Market/stop/iceberg/IOC/FOK
// are out of scope (spec Non-goals).
type RequestType uint8

const (
	RequestTypeInvalid RequestType = iota
	RequestTypeNew
	RequestTypeCancel
)

func (t RequestType) String() string {
	switch t {
	case RequestTypeNew:
		return "NEW"
	case RequestTypeCancel:
		return "CANCEL"
	default:
		return "INVALID"
	}
}

// ResponseType is the client-facing execution report taxonomy.
type ResponseType uint8

const (
	ResponseTypeInvalid ResponseType = iota
	ResponseTypeAccepted
	ResponseTypeFilled
	ResponseTypeCanceled
	ResponseTypeCancelRejected
)

func (t ResponseType) String() string {
	switch t {
	case ResponseTypeAccepted:
		return "ACCEPTED"
	case ResponseTypeFilled:
		return "FILLED"
	case ResponseTypeCanceled:
		return "CANCELED"
	case ResponseTypeCancelRejected:
		return "CANCEL_REJECTED"
	default:
		return "INVALID"
	}
}

// MarketUpdateType is the public market-data update taxonomy.
type MarketUpdateType uint8

const (
	MarketUpdateInvalid MarketUpdateType = iota
	MarketUpdateAdd
	MarketUpdateModify
	MarketUpdateCancel
	MarketUpdateTrade
	MarketUpdateClear
	MarketUpdateSnapshotStart
	MarketUpdateSnapshotEnd
)

func (t MarketUpdateType) String() string {
	switch t {
	case MarketUpdateAdd:
		return "ADD"
	case MarketUpdateModify:
		return "MODIFY"
	case MarketUpdateCancel:
		return "CANCEL"
	case MarketUpdateTrade:
		return "TRADE"
	case MarketUpdateClear:
		return "CLEAR"
	case MarketUpdateSnapshotStart:
		return "SNAPSHOT_START"
	case MarketUpdateSnapshotEnd:
		return "SNAPSHOT_END"
	default:
		return "INVALID"
	}
}

// ClientRequest is the client->server order-entry record (§3).
type ClientRequest struct {
	Type          RequestType
	ClientId      types.ClientId
	TickerId      types.TickerId
	ClientOrderId types.OrderId
	Side          types.Side
	Price         types.Price
	Qty           types.Qty
}

// ClientRequestSize is the packed on-wire size of ClientRequest, in bytes.
const ClientRequestSize = 1 + 4 + 4 + 8 + 1 + 8 + 4

func (r *ClientRequest) Encode(buf []byte) {
	_ = buf[ClientRequestSize-1]
	buf[0] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ClientId))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(r.TickerId))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(r.ClientOrderId))
	buf[17] = byte(r.Side)
	binary.LittleEndian.PutUint64(buf[18:26], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[26:30], uint32(r.Qty))
}

func (r *ClientRequest) Decode(buf []byte) {
	_ = buf[ClientRequestSize-1]
	r.Type = RequestType(buf[0])
	r.ClientId = types.ClientId(binary.LittleEndian.Uint32(buf[1:5]))
	r.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[5:9]))
	r.ClientOrderId = types.OrderId(binary.LittleEndian.Uint64(buf[9:17]))
	r.Side = types.Side(int8(buf[17]))
	r.Price = types.Price(binary.LittleEndian.Uint64(buf[18:26]))
	r.Qty = types.Qty(binary.LittleEndian.Uint32(buf[26:30]))
}

func (r ClientRequest) String() string {
	return fmt.Sprintf("ClientRequest{%s c=%s t=%s oid=%s %s px=%s qty=%s}",
		r.Type, r.ClientId, r.TickerId, r.ClientOrderId, r.Side, r.Price, r.Qty)
}

// ClientResponse is the server->client execution report (§3).
type ClientResponse struct {
	Type          ResponseType
	ClientId      types.ClientId
	TickerId      types.TickerId
	ClientOrderId types.OrderId
	MarketOrderId types.OrderId
	Side          types.Side
	Price         types.Price
	ExecQty       types.Qty
	LeavesQty     types.Qty
}

// ClientResponseSize is the packed on-wire size of ClientResponse, in bytes.
const ClientResponseSize = 1 + 4 + 4 + 8 + 8 + 1 + 8 + 4 + 4

func (r *ClientResponse) Encode(buf []byte) {
	_ = buf[ClientResponseSize-1]
	buf[0] = byte(r.Type)
	binary.LittleEndian.PutUint32(buf[1:5], uint32(r.ClientId))
	binary.LittleEndian.PutUint32(buf[5:9], uint32(r.TickerId))
	binary.LittleEndian.PutUint64(buf[9:17], uint64(r.ClientOrderId))
	binary.LittleEndian.PutUint64(buf[17:25], uint64(r.MarketOrderId))
	buf[25] = byte(r.Side)
	binary.LittleEndian.PutUint64(buf[26:34], uint64(r.Price))
	binary.LittleEndian.PutUint32(buf[34:38], uint32(r.ExecQty))
	binary.LittleEndian.PutUint32(buf[38:42], uint32(r.LeavesQty))
}

func (r *ClientResponse) Decode(buf []byte) {
	_ = buf[ClientResponseSize-1]
	r.Type = ResponseType(buf[0])
	r.ClientId = types.ClientId(binary.LittleEndian.Uint32(buf[1:5]))
	r.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[5:9]))
	r.ClientOrderId = types.OrderId(binary.LittleEndian.Uint64(buf[9:17]))
	r.MarketOrderId = types.OrderId(binary.LittleEndian.Uint64(buf[17:25]))
	r.Side = types.Side(int8(buf[25]))
	r.Price = types.Price(binary.LittleEndian.Uint64(buf[26:34]))
	r.ExecQty = types.Qty(binary.LittleEndian.Uint32(buf[34:38]))
	r.LeavesQty = types.Qty(binary.LittleEndian.Uint32(buf[38:42]))
}

func (r ClientResponse) String() string {
	return fmt.Sprintf("ClientResponse{%s c=%s t=%s oid=%s mid=%s %s px=%s exec=%s leaves=%s}",
		r.Type, r.ClientId, r.TickerId, r.ClientOrderId, r.MarketOrderId, r.Side, r.Price, r.ExecQty, r.LeavesQty)
}

// MarketUpdate is one public book-change record (§3). SeqNum is only
// meaningful on SNAPSHOT_START/SNAPSHOT_END, where it carries the highest
// incremental sequence number reflected by the snapshot (§4.8); it is
// zero on every other update type.
type MarketUpdate struct {
	Type     MarketUpdateType
	OrderId  types.OrderId
	TickerId types.TickerId
	Side     types.Side
	Price    types.Price
	Qty      types.Qty
	Priority types.Priority
	SeqNum   uint64
}

// MarketUpdateSize is the packed on-wire size of MarketUpdate, in bytes.
const MarketUpdateSize = 1 + 8 + 4 + 1 + 8 + 4 + 8 + 8

func (u *MarketUpdate) Encode(buf []byte) {
	_ = buf[MarketUpdateSize-1]
	buf[0] = byte(u.Type)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(u.OrderId))
	binary.LittleEndian.PutUint32(buf[9:13], uint32(u.TickerId))
	buf[13] = byte(u.Side)
	binary.LittleEndian.PutUint64(buf[14:22], uint64(u.Price))
	binary.LittleEndian.PutUint32(buf[22:26], uint32(u.Qty))
	binary.LittleEndian.PutUint64(buf[26:34], uint64(u.Priority))
	binary.LittleEndian.PutUint64(buf[34:42], u.SeqNum)
}

func (u *MarketUpdate) Decode(buf []byte) {
	_ = buf[MarketUpdateSize-1]
	u.Type = MarketUpdateType(buf[0])
	u.OrderId = types.OrderId(binary.LittleEndian.Uint64(buf[1:9]))
	u.TickerId = types.TickerId(binary.LittleEndian.Uint32(buf[9:13]))
	u.Side = types.Side(int8(buf[13]))
	u.Price = types.Price(binary.LittleEndian.Uint64(buf[14:22]))
	u.Qty = types.Qty(binary.LittleEndian.Uint32(buf[22:26]))
	u.Priority = types.Priority(binary.LittleEndian.Uint64(buf[26:34]))
	u.SeqNum = binary.LittleEndian.Uint64(buf[34:42])
}

func (u MarketUpdate) String() string {
	return fmt.Sprintf("MarketUpdate{%s oid=%s t=%s %s px=%s qty=%s prio=%s}",
		u.Type, u.OrderId, u.TickerId, u.Side, u.Price, u.Qty, u.Priority)
}

// PublicMessage is a sequence-numbered MarketUpdate as published on
// either multicast group (§6): "(u64 seq_num, MarketUpdate) per datagram."
type PublicMessage struct {
	SeqNum uint64
	Update MarketUpdate
}

// PublicMessageSize is the packed on-wire size of PublicMessage, in bytes.
const PublicMessageSize = 8 + MarketUpdateSize

func (m *PublicMessage) Encode(buf []byte) {
	_ = buf[PublicMessageSize-1]
	binary.LittleEndian.PutUint64(buf[0:8], m.SeqNum)
	m.Update.Encode(buf[8:PublicMessageSize])
}

func (m *PublicMessage) Decode(buf []byte) {
	_ = buf[PublicMessageSize-1]
	m.SeqNum = binary.LittleEndian.Uint64(buf[0:8])
	m.Update.Decode(buf[8:PublicMessageSize])
}

// RequestFrameSize is a full (seq, ClientRequest) TCP frame, client->server.
const RequestFrameSize = 8 + ClientRequestSize

// ResponseFrameSize is a full (seq, ClientResponse) TCP frame, server->client.
const ResponseFrameSize = 8 + ClientResponseSize

// RequestFrame is one framed client request with its session sequence number.
type RequestFrame struct {
	Seq     uint64
	Request ClientRequest
}

func (f *RequestFrame) Encode(buf []byte) {
	_ = buf[RequestFrameSize-1]
	binary.LittleEndian.PutUint64(buf[0:8], f.Seq)
	f.Request.Encode(buf[8:RequestFrameSize])
}

func (f *RequestFrame) Decode(buf []byte) {
	_ = buf[RequestFrameSize-1]
	f.Seq = binary.LittleEndian.Uint64(buf[0:8])
	f.Request.Decode(buf[8:RequestFrameSize])
}

// ResponseFrame is one framed client response with its session sequence number.
type ResponseFrame struct {
	Seq      uint64
	Response ClientResponse
}

func (f *ResponseFrame) Encode(buf []byte) {
	_ = buf[ResponseFrameSize-1]
	binary.LittleEndian.PutUint64(buf[0:8], f.Seq)
	f.Response.Encode(buf[8:ResponseFrameSize])
}

func (f *ResponseFrame) Decode(buf []byte) {
	_ = buf[ResponseFrameSize-1]
	f.Seq = binary.LittleEndian.Uint64(buf[0:8])
	f.Response.Decode(buf[8:ResponseFrameSize])
}
