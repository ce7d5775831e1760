// Package dispatcher implements the single-consumer event loop that owns
// Buckets exclusively. Grounded on the `loop { match event_recv.recv() {
// ... } }` body of original_source/src/main.rs, translated to a Go
// for/select loop over the event channel and an internal admin-delete
// channel — a single goroutine serializes both, same structural-
// serialization idea as the Rust mpsc::channel, extended with the backend
// fan-out, reset and snapshot publish spec.md §4.4 requires beyond the
// minimal Rust variant.
package dispatcher

import (
	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/backend"
	"github.com/GiedriusS/statsd-server/internal/buckets"
	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/metric"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
	"github.com/GiedriusS/statsd-server/internal/snapshot"
)

// Dispatcher is the sole mutator of Buckets. It consumes Events from a
// bounded channel and drives flush/reset/snapshot-publish on TimerFlush.
type Dispatcher struct {
	buckets  *buckets.Buckets
	backends []backend.Backend
	cell     *snapshot.Cell
	stats    *selfstat.Stats
	log      *logrus.Entry

	// AdminHandler is invoked with a TcpMessage's connection and the
	// snapshot cell; it is a func rather than an interface because the
	// admin package itself depends on dispatcher's event types (it sends
	// DeleteRequest events back), so a plain function avoids an import
	// cycle while keeping Dispatcher ignorant of the admin wire protocol.
	AdminHandler func(conn event.TcpMessage, cell *snapshot.Cell, deleteCh chan<- event.DeleteRequest)
}

// New builds a Dispatcher owning b and flushing to backends in order.
func New(b *buckets.Buckets, backends []backend.Backend, cell *snapshot.Cell, stats *selfstat.Stats, log *logrus.Entry) *Dispatcher {
	return &Dispatcher{
		buckets:  b,
		backends: backends,
		cell:     cell,
		stats:    stats,
		log:      log.WithField("component", "dispatcher"),
	}
}

// Run consumes events until ch is closed. It is intended to be the only
// goroutine that ever touches d.buckets.
func (d *Dispatcher) Run(ch <-chan event.Event) {
	deleteCh := make(chan event.DeleteRequest, 16)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return
			}
			d.stats.PendingEvents.Set(float64(len(ch)))
			d.handle(e, deleteCh)
		case req := <-deleteCh:
			d.handleDelete(req)
		}
	}
}

func (d *Dispatcher) handle(e event.Event, deleteCh chan<- event.DeleteRequest) {
	switch ev := e.(type) {
	case event.TimerFlush:
		d.flush()
	case event.UdpMessage:
		metrics, bad := metric.ParseDatagram(ev.Data)
		for _, m := range metrics {
			d.buckets.Add(m)
			d.stats.MetricsReceived.Inc()
		}
		for i := 0; i < bad; i++ {
			d.buckets.AddBadMessage()
			d.stats.BadMessages.Inc()
		}
		if bad > 0 {
			d.log.WithField("bad_lines", bad).Debug("malformed statsd input")
		}
	case event.ZmqBatch:
		for _, m := range ev.Metrics {
			d.buckets.Add(m)
			d.stats.MetricsReceived.Inc()
		}
	case event.TcpMessage:
		if d.AdminHandler != nil {
			go d.AdminHandler(ev, d.cell, deleteCh)
		} else {
			_ = ev.Conn.Close()
		}
	case event.DeleteRequest:
		d.handleDelete(ev)
	}
}

func (d *Dispatcher) handleDelete(req event.DeleteRequest) {
	var n int
	for _, name := range req.Names {
		var ok bool
		switch req.Kind {
		case event.DeleteCounter:
			ok = d.buckets.DeleteCounter(name)
		case event.DeleteGauge:
			ok = d.buckets.DeleteGauge(name)
		case event.DeleteTimer:
			ok = d.buckets.DeleteTimer(name)
		}
		if ok {
			n++
		}
	}
	if req.Result != nil {
		req.Result <- n
	}
}

// flush runs the process -> backend fan-out -> reset -> snapshot-publish
// protocol of spec.md §4.4. A backend error is logged and does not stop
// the remaining backends from flushing, nor does it prevent Reset: the
// interval's data cannot be re-flushed later (spec.md §4.5/§7).
func (d *Dispatcher) flush() {
	d.buckets.Process()
	snap := d.buckets.Clone()

	for _, be := range d.backends {
		if err := be.FlushBuckets(snap); err != nil {
			d.log.WithError(err).WithField("backend", be.Name()).Warn("backend flush failed")
			d.stats.BackendFlushErrors.WithLabelValues(be.Name()).Inc()
		}
	}

	d.buckets.Reset()
	d.cell.Publish(snap)
}
