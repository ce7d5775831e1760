package listener

import (
	"strings"

	"github.com/pebbe/zmq4"
	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/metric"
)

// ZMQ listens for framed batches of statsd lines over a ZeroMQ PULL
// socket and sends one event.ZmqBatch per frame, pre-parsed (spec.md
// §4.2: "the batch iterator yields one Metric per sample", decode
// happens upstream of the dispatcher since ZMQ frames already carry
// message boundaries, unlike raw UDP bytes). Uses github.com/pebbe/zmq4,
// named in DESIGN.md since no pack example ships a ZMQ transport.
type ZMQ struct {
	socket *zmq4.Socket
	log    *logrus.Entry
}

// ListenZMQ binds addr (e.g. "tcp://*:5555") as a PULL socket.
func ListenZMQ(addr string, log *logrus.Entry) (*ZMQ, error) {
	sock, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := sock.Bind(addr); err != nil {
		_ = sock.Close()
		return nil, err
	}
	log.WithField("addr", addr).Info("zmq listener started")
	return &ZMQ{socket: sock, log: log.WithField("component", "listener.zmq")}, nil
}

// Run receives frames until the socket is closed, parsing each frame's
// newline-delimited statsd lines into a batch of metrics.
func (z *ZMQ) Run(ch chan<- event.Event) {
	for {
		frame, err := z.socket.Recv(0)
		if err != nil {
			if strings.Contains(err.Error(), "context was terminated") || strings.Contains(err.Error(), "socket closed") {
				return
			}
			z.log.WithError(err).Error("zmq recv error")
			continue
		}

		var batch []metric.Metric
		for _, line := range strings.Split(frame, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			m, err := metric.ParseLine(line)
			if err != nil {
				z.log.WithError(err).Debug("zmq: malformed line")
				continue
			}
			batch = append(batch, m)
		}
		if len(batch) > 0 {
			ch <- event.ZmqBatch{Metrics: batch}
		}
	}
}

// Close stops the listener.
func (z *ZMQ) Close() error {
	return z.socket.Close()
}
