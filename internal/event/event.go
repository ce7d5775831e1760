// Package event defines the tagged union of ingress events that flow
// through the dispatcher's single bounded channel.
//
// This mirrors the Event enum of the original Rust implementation
// (server::Event in main.rs: TimerFlush / UdpMessage) extended with the
// cases spec.md's full-featured variant requires: ZmqBatch, TcpMessage and
// DeleteRequest (admin deletes are relayed back to the dispatcher rather
// than mutating live state directly).
package event

import (
	"net"
	"time"

	"github.com/GiedriusS/statsd-server/internal/metric"
)

// Event is implemented by every event variant. The marker method keeps the
// set closed to this package, the idiomatic Go stand-in for a Rust enum.
type Event interface {
	isEvent()
}

// TimerFlush fires on the configured flush cadence.
type TimerFlush struct {
	At time.Time
}

func (TimerFlush) isEvent() {}

// UdpMessage carries one raw, unparsed datagram. Parsing happens on the
// dispatcher to centralize all Buckets mutation in one goroutine.
type UdpMessage struct {
	Data []byte
	From net.Addr
}

func (UdpMessage) isEvent() {}

// ZmqBatch carries a pre-parsed batch of metrics decoded upstream by the
// ZMQ listener (the framed decode happens off the dispatcher since ZMQ
// frames are already message-boundary delimited, unlike raw UDP bytes).
type ZmqBatch struct {
	Metrics []metric.Metric
}

func (ZmqBatch) isEvent() {}

// TcpMessage carries one accepted admin connection, handed off to a
// detached worker by the dispatcher.
type TcpMessage struct {
	Conn net.Conn
}

func (TcpMessage) isEvent() {}

// DeleteKind selects which bucket a DeleteRequest targets.
type DeleteKind int

const (
	DeleteCounter DeleteKind = iota
	DeleteGauge
	DeleteTimer
)

// DeleteRequest is produced by an admin worker's delcounters/delgauges/
// deltimers command and applied to the live Buckets by the dispatcher.
type DeleteRequest struct {
	Kind   DeleteKind
	Names  []string
	Result chan int // number of buckets actually deleted, sent once
}

func (DeleteRequest) isEvent() {}
