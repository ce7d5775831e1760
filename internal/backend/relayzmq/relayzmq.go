// Package relayzmq implements the statsd-over-ZMQ backend: framed batches
// of raw statsd lines pushed to one or more ZMQ peers, symmetric to the
// ZMQ ingest side in internal/listener/zmq.go. Uses github.com/pebbe/zmq4,
// the standard CGo binding for ZeroMQ in Go — named in DESIGN.md as an
// out-of-pack dependency since no example repo in the retrieval pack ships
// a ZMQ transport at all.
package relayzmq

import (
	"fmt"
	"strings"

	"github.com/pebbe/zmq4"
	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/buckets"
)

// Config configures the statsd-relay-over-ZMQ backend.
type Config struct {
	Hosts []string // tcp://host:port endpoints to PUSH to
}

// Backend emits one ZMQ frame per flush containing newline-joined statsd
// lines, pushed round-robin across the configured peers by the socket's
// own PUSH/PULL load balancing.
type Backend struct {
	cfg    Config
	log    *logrus.Entry
	socket *zmq4.Socket
}

// New returns a ZMQ relay backend. The socket is created lazily on first
// flush so construction never fails at startup due to an unreachable peer.
func New(cfg Config, log *logrus.Entry) *Backend {
	return &Backend{cfg: cfg, log: log.WithField("backend", "statsd-relay-zmq")}
}

func (*Backend) Name() string { return "statsd-relay-zmq" }

// FlushBuckets renders the snapshot as statsd lines and sends them as one
// framed message per flush.
func (b *Backend) FlushBuckets(snap *buckets.Snapshot) error {
	if err := b.ensureSocket(); err != nil {
		return fmt.Errorf("relayzmq: socket: %w", err)
	}

	lines := encodeLines(snap)
	if len(lines) == 0 {
		return nil
	}
	frame := strings.Join(lines, "\n")
	if _, err := b.socket.Send(frame, 0); err != nil {
		b.closeSocket()
		return fmt.Errorf("relayzmq: send: %w", err)
	}
	return nil
}

func (b *Backend) ensureSocket() error {
	if b.socket != nil {
		return nil
	}
	sock, err := zmq4.NewSocket(zmq4.PUSH)
	if err != nil {
		return err
	}
	for _, host := range b.cfg.Hosts {
		if err := sock.Connect(host); err != nil {
			_ = sock.Close()
			return fmt.Errorf("connect %s: %w", host, err)
		}
	}
	b.socket = sock
	return nil
}

func (b *Backend) closeSocket() {
	if b.socket != nil {
		_ = b.socket.Close()
		b.socket = nil
	}
}

func encodeLines(snap *buckets.Snapshot) []string {
	lines := make([]string, 0, len(snap.Counters)+len(snap.Gauges)+len(snap.TimerData))
	for name, v := range snap.Counters {
		lines = append(lines, fmt.Sprintf("%s:%f|c", name, v))
	}
	for name, v := range snap.Gauges {
		lines = append(lines, fmt.Sprintf("%s:%f|g", name, v))
	}
	for name, ts := range snap.TimerData {
		lines = append(lines, fmt.Sprintf("%s:%f|ms", name, ts.Mean))
	}
	return lines
}
