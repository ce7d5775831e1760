// Package relay implements the statsd-over-UDP backend: re-emitting the
// aggregated buckets as statsd lines, packed into datagrams up to a
// configured packet size, across one or more destination hosts using
// either broadcast or consistent-hash-by-name routing (spec.md §4.5/§9).
package relay

import (
	"bytes"
	"fmt"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/buckets"
)

// Mode selects how metrics are routed across multiple destination hosts.
type Mode int

const (
	// Broadcast sends every metric to every configured host.
	Broadcast Mode = iota
	// ConsistentHash sends each metric name to exactly one host.
	ConsistentHash
)

// Config configures the statsd-relay-over-UDP backend.
type Config struct {
	Hosts      []string
	PacketSize int
	Mode       Mode
}

// Backend re-emits aggregated buckets as statsd datagrams over UDP.
type Backend struct {
	cfg  Config
	log  *logrus.Entry
	ring *hashRing
}

// New returns a relay backend targeting cfg.Hosts.
func New(cfg Config, log *logrus.Entry) *Backend {
	if cfg.PacketSize <= 0 {
		cfg.PacketSize = 1432 // safely under typical Ethernet MTU after IP/UDP headers
	}
	return &Backend{cfg: cfg, log: log.WithField("backend", "statsd-relay"), ring: newHashRing(cfg.Hosts)}
}

func (*Backend) Name() string { return "statsd-relay" }

// FlushBuckets re-encodes the snapshot as statsd lines and ships them,
// packed up to PacketSize per datagram, to the configured hosts.
func (b *Backend) FlushBuckets(snap *buckets.Snapshot) error {
	lines := encodeLines(snap)
	if len(lines) == 0 {
		return nil
	}

	var firstErr error
	switch b.cfg.Mode {
	case ConsistentHash:
		byHost := make(map[string][]string)
		for _, ln := range lines {
			host := b.ring.Pick(lineName(ln))
			byHost[host] = append(byHost[host], ln)
		}
		for host, hostLines := range byHost {
			if err := b.sendTo(host, hostLines); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	default: // Broadcast
		for _, host := range b.cfg.Hosts {
			if err := b.sendTo(host, lines); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (b *Backend) sendTo(host string, lines []string) error {
	conn, err := net.Dial("udp", host)
	if err != nil {
		return fmt.Errorf("relay: dial %s: %w", host, err)
	}
	defer conn.Close()

	var packet bytes.Buffer
	flush := func() error {
		if packet.Len() == 0 {
			return nil
		}
		_, err := conn.Write(packet.Bytes())
		packet.Reset()
		return err
	}

	for _, ln := range lines {
		if packet.Len()+len(ln)+1 > b.cfg.PacketSize {
			if err := flush(); err != nil {
				return fmt.Errorf("relay: write to %s: %w", host, err)
			}
		}
		packet.WriteString(ln)
		packet.WriteByte('\n')
	}
	if err := flush(); err != nil {
		return fmt.Errorf("relay: write to %s: %w", host, err)
	}
	return nil
}

// encodeLines renders a snapshot back into statsd wire lines: counters as
// the interval's scaled sums (sample rate already applied, so no @rate is
// emitted), gauges as sets, and each timer as three samples (min, max,
// mean).
func encodeLines(snap *buckets.Snapshot) []string {
	lines := make([]string, 0, len(snap.Counters)+len(snap.Gauges))
	for name, v := range snap.Counters {
		lines = append(lines, fmt.Sprintf("%s:%f|c", name, v))
	}
	for name, v := range snap.Gauges {
		if v < 0 {
			// A leading '-' reads as a decrement; zero the gauge first.
			lines = append(lines, fmt.Sprintf("%s:0|g", name))
		}
		lines = append(lines, fmt.Sprintf("%s:%f|g", name, v))
	}
	for name, ts := range snap.TimerData {
		for _, v := range []float64{ts.Min, ts.Max, ts.Mean} {
			lines = append(lines, fmt.Sprintf("%s:%f|ms", name, v))
		}
	}
	return lines
}

func lineName(line string) string {
	if idx := bytes.IndexByte([]byte(line), ':'); idx >= 0 {
		return line[:idx]
	}
	return line
}
