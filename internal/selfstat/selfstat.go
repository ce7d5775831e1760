// Package selfstat tracks the daemon's own health counters: messages
// received, bad messages, packets dropped, backend flush errors and admin
// connection counts. It plays the role of the teacher's selfstat package,
// but since that package is internal to telegraf and not importable here,
// the same concern is rebuilt on prometheus/client_golang, which is
// wired to an optional /metrics HTTP endpoint (internal/config
// MetricsAddress). The admin "stats" command does not print these
// collectors; it reports the flushed Buckets snapshot instead.
package selfstat

import "github.com/prometheus/client_golang/prometheus"

// Stats is the set of counters/gauges the daemon maintains about itself.
type Stats struct {
	Registry *prometheus.Registry

	UDPPacketsReceived  prometheus.Counter
	UDPBytesReceived    prometheus.Counter
	UDPPacketsDropped   prometheus.Counter
	MetricsReceived     prometheus.Counter
	BadMessages         prometheus.Counter
	BackendFlushErrors  *prometheus.CounterVec
	AdminConnections    prometheus.Counter
	AdminConnectionsCur prometheus.Gauge
	PendingEvents       prometheus.Gauge
}

// New registers and returns a fresh set of self-stat collectors.
func New() *Stats {
	reg := prometheus.NewRegistry()
	s := &Stats{
		Registry: reg,
		UDPPacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_udp_packets_received_total",
			Help: "UDP datagrams received on the statsd listener.",
		}),
		UDPBytesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_udp_bytes_received_total",
			Help: "Bytes received on the statsd UDP listener.",
		}),
		UDPPacketsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_udp_packets_dropped_total",
			Help: "UDP datagrams dropped because the event channel was full.",
		}),
		MetricsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_metrics_received_total",
			Help: "Well-formed metrics ingested since startup.",
		}),
		BadMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_bad_messages_total",
			Help: "Datagrams or lines that failed to parse.",
		}),
		BackendFlushErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "statsdaemon_backend_flush_errors_total",
			Help: "Flush errors per backend.",
		}, []string{"backend"}),
		AdminConnections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "statsdaemon_admin_connections_total",
			Help: "Admin TCP connections accepted since startup.",
		}),
		AdminConnectionsCur: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statsdaemon_admin_connections_current",
			Help: "Admin TCP connections currently open.",
		}),
		PendingEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "statsdaemon_pending_events",
			Help: "Events queued on the dispatcher's event channel.",
		}),
	}
	reg.MustRegister(
		s.UDPPacketsReceived, s.UDPBytesReceived, s.UDPPacketsDropped,
		s.MetricsReceived, s.BadMessages, s.BackendFlushErrors,
		s.AdminConnections, s.AdminConnectionsCur, s.PendingEvents,
	)
	return s
}
