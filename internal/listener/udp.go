// Package listener implements the ingress producers: UDP, optional ZMQ,
// the TCP admin acceptor, and the flush ticker. Each runs on its own
// goroutine and is a producer on the dispatcher's shared, bounded event
// channel, grounded on Statsd.udpListen/tcpListen in the teacher and on
// udpListener/adminListener in justeat-statsdaemon.go.
package listener

import (
	"errors"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
)

// MaxDatagramSize is the largest UDP datagram accepted, per spec.md §6
// ("implementation should accept at least 65507 bytes").
const MaxDatagramSize = 65507

// UDP listens for statsd datagrams and sends one event.UdpMessage per
// packet onto ch. It blocks on ReadFromUDP; Close closes the socket to
// unblock it, following the teacher's s.done/conn.Close() shutdown style.
type UDP struct {
	conn  *net.UDPConn
	log   *logrus.Entry
	stats *selfstat.Stats
}

// ListenUDP binds addr and returns a ready-to-run UDP listener.
func ListenUDP(addr string, log *logrus.Entry, stats *selfstat.Stats) (*UDP, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	log.WithField("addr", conn.LocalAddr().String()).Info("udp listener started")
	return &UDP{conn: conn, log: log.WithField("component", "listener.udp"), stats: stats}, nil
}

// Run reads datagrams until the connection is closed, sending each to ch.
// If ch is full the datagram is dropped (back-pressure per spec.md §4.2/§5
// is exerted by blocking on send instead; dropping at the UDP listener
// specifically protects kernel buffers from backing up behind a send that
// could otherwise stall the OS receive loop indefinitely).
func (u *UDP) Run(ch chan<- event.Event) {
	buf := make([]byte, MaxDatagramSize)
	for {
		n, addr, err := u.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed network") {
				return
			}
			u.log.WithError(err).Error("udp read error")
			continue
		}
		u.stats.UDPPacketsReceived.Inc()
		u.stats.UDPBytesReceived.Add(float64(n))

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case ch <- event.UdpMessage{Data: data, From: addr}:
		default:
			u.stats.UDPPacketsDropped.Inc()
			u.log.Warn("event channel full, dropping datagram")
		}
	}
}

// Close stops the listener by closing its socket.
func (u *UDP) Close() error {
	return u.conn.Close()
}

// Ticker sends a TimerFlush event every interval until Stop is called.
type Ticker struct {
	stop chan struct{}
}

// StartTicker launches the flush cadence goroutine.
func StartTicker(interval time.Duration, ch chan<- event.Event) *Ticker {
	t := &Ticker{stop: make(chan struct{})}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case now := <-ticker.C:
				ch <- event.TimerFlush{At: now}
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

// Stop ends the ticker goroutine.
func (t *Ticker) Stop() {
	close(t.stop)
}
