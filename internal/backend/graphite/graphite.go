// Package graphite implements the Graphite plaintext backend: a TCP
// connection opened lazily and reopened on failure, emitting
// "<prefix>.<bucket> <value> <epoch>\n" lines. Grounded on submit() /
// processCounters / processGauges / processTimers in
// justeat-statsdaemon.go (dial, deadline, write, leave reconnection to the
// next flush attempt on error).
package graphite

import (
	"bytes"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/buckets"
)

// Config configures the Graphite backend.
type Config struct {
	Address       string
	PrefixCounter string
	PrefixGauge   string
	PrefixTimer   string
	DialTimeout   time.Duration
}

// Backend writes aggregated buckets as Graphite plaintext lines over TCP.
type Backend struct {
	cfg  Config
	log  *logrus.Entry
	conn net.Conn // reused across flushes; redialed lazily on error
}

// New returns a Graphite backend dialing cfg.Address on first flush.
func New(cfg Config, log *logrus.Entry) *Backend {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	return &Backend{cfg: cfg, log: log.WithField("backend", "graphite")}
}

func (*Backend) Name() string { return "graphite" }

// FlushBuckets renders the snapshot and writes it in one call, redialing
// the TCP connection first if it is absent or was previously broken.
func (b *Backend) FlushBuckets(snap *buckets.Snapshot) error {
	if err := b.ensureConn(); err != nil {
		return fmt.Errorf("graphite: dial %s: %w", b.cfg.Address, err)
	}

	var buf bytes.Buffer
	now := time.Now().Unix()

	for name, v := range snap.Counters {
		fmt.Fprintf(&buf, "%s.%s %f %d\n", b.cfg.PrefixCounter, name, v, now)
	}
	for name, v := range snap.Gauges {
		fmt.Fprintf(&buf, "%s.%s %f %d\n", b.cfg.PrefixGauge, name, v, now)
	}
	for name, ts := range snap.TimerData {
		prefix := b.cfg.PrefixTimer + "." + name
		fmt.Fprintf(&buf, "%s.mean %f %d\n", prefix, ts.Mean, now)
		fmt.Fprintf(&buf, "%s.median %f %d\n", prefix, ts.Median, now)
		fmt.Fprintf(&buf, "%s.std %f %d\n", prefix, ts.Std, now)
		fmt.Fprintf(&buf, "%s.sum %f %d\n", prefix, ts.Sum, now)
		fmt.Fprintf(&buf, "%s.upper %f %d\n", prefix, ts.Max, now)
		fmt.Fprintf(&buf, "%s.lower %f %d\n", prefix, ts.Min, now)
		fmt.Fprintf(&buf, "%s.count %d %d\n", prefix, ts.Count, now)
		fmt.Fprintf(&buf, "%s.rate %f %d\n", prefix, ts.Rate, now)
		for pct, upper := range ts.Upper {
			fmt.Fprintf(&buf, "%s.upper_%d %f %d\n", prefix, pct, upper, now)
			fmt.Fprintf(&buf, "%s.mean_%d %f %d\n", prefix, pct, ts.Mean90[pct], now)
			fmt.Fprintf(&buf, "%s.sum_%d %f %d\n", prefix, pct, ts.Sum90[pct], now)
		}
	}

	if buf.Len() == 0 {
		return nil
	}

	if err := b.conn.SetWriteDeadline(time.Now().Add(b.cfg.DialTimeout)); err != nil {
		b.closeConn()
		return fmt.Errorf("graphite: set deadline: %w", err)
	}
	if _, err := b.conn.Write(buf.Bytes()); err != nil {
		b.closeConn()
		return fmt.Errorf("graphite: write: %w", err)
	}
	return nil
}

func (b *Backend) ensureConn() error {
	if b.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", b.cfg.Address, b.cfg.DialTimeout)
	if err != nil {
		return err
	}
	b.conn = conn
	return nil
}

func (b *Backend) closeConn() {
	if b.conn != nil {
		_ = b.conn.Close()
		b.conn = nil
	}
}
