// Command statsdaemon wires configuration, logging, backends and listeners
// around the core aggregation pipeline and runs until a termination signal
// triggers one final flush. Bootstrap style (flag parsing, signal handling,
// panic-to-exit) is grounded on justeat-statsdaemon.go's main(), adapted
// from that daemon's goroutine-per-listener-plus-monitor shape to this
// repo's dispatcher/listener split.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/backend"
	"github.com/GiedriusS/statsd-server/internal/backend/console"
	"github.com/GiedriusS/statsd-server/internal/backend/graphite"
	"github.com/GiedriusS/statsd-server/internal/backend/relay"
	"github.com/GiedriusS/statsd-server/internal/backend/relayzmq"
	"github.com/GiedriusS/statsd-server/internal/buckets"
	"github.com/GiedriusS/statsd-server/internal/config"
	"github.com/GiedriusS/statsd-server/internal/dispatcher"
	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/listener"
	"github.com/GiedriusS/statsd-server/internal/admin"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
	"github.com/GiedriusS/statsd-server/internal/snapshot"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("panic", r).Error("fatal: unhandled panic in main")
			os.Exit(77)
		}
	}()

	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "statsdaemon:", err)
		os.Exit(1)
	}

	log := newLogger(cfg)
	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("fatal startup error")
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stdout) // the console backend prints through this logger
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}

func run(cfg *config.Config, log *logrus.Logger) error {
	entry := log.WithField("component", "main")
	stats := selfstat.New()

	backends, err := buildBackends(cfg, log)
	if err != nil {
		return fmt.Errorf("building backends: %w", err)
	}
	if len(backends) == 0 {
		entry.Warn("no backends configured; flushed data will be discarded")
	}

	b := buckets.New(cfg.FlushInterval, cfg.DeleteGauges)
	cell := &snapshot.Cell{}
	disp := dispatcher.New(b, backends, cell, stats, log.WithField("component", "bootstrap"))
	disp.AdminHandler = func(conn event.TcpMessage, cell *snapshot.Cell, deleteCh chan<- event.DeleteRequest) {
		admin.HandleConnection(conn, cell, deleteCh, stats, log.WithField("component", "admin"))
	}

	// Sized per spec.md §5 ("bounded (capacity ~10^6) to exert backpressure
	// on producers rather than grow unbounded memory") so a burst of UDP
	// traffic cannot delay TimerFlush behind a saturated ingress.
	events := make(chan event.Event, 1<<20)

	udpAddr := fmt.Sprintf("%s:%d", cfg.BindHost, cfg.Port)
	udpListener, err := listener.ListenUDP(udpAddr, log.WithField("component", "bootstrap"), stats)
	if err != nil {
		return fmt.Errorf("listening udp on %s: %w", udpAddr, err)
	}
	defer udpListener.Close()
	go udpListener.Run(events)

	adminAddr := fmt.Sprintf("%s:%d", cfg.AdminHost, cfg.AdminPort)
	adminListener, err := listener.ListenAdmin(adminAddr, log.WithField("component", "bootstrap"))
	if err != nil {
		return fmt.Errorf("listening admin on %s: %w", adminAddr, err)
	}
	defer adminListener.Close()
	go adminListener.Run(events)

	var zmqListener *listener.ZMQ
	if cfg.ZeromqListen {
		zmqAddr := fmt.Sprintf("tcp://%s:%d", cfg.ZeromqHost, cfg.ZeromqPort)
		zmqListener, err = listener.ListenZMQ(zmqAddr, log.WithField("component", "bootstrap"))
		if err != nil {
			return fmt.Errorf("listening zmq on %s: %w", zmqAddr, err)
		}
		defer zmqListener.Close()
		go zmqListener.Run(events)
	}

	ticker := listener.StartTicker(cfg.FlushInterval, events)
	defer ticker.Stop()

	if cfg.MetricsAddress != "" {
		go serveMetrics(cfg.MetricsAddress, stats, log.WithField("component", "bootstrap"))
	}

	go runDispatcher(disp, events, entry)

	entry.WithField("flush_interval", cfg.FlushInterval).Info("statsdaemon started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	entry.Info("shutting down, flushing once more")
	events <- event.TimerFlush{At: time.Now()}
	time.Sleep(200 * time.Millisecond) // let the final flush drain before exit
	return nil
}

// runDispatcher runs the dispatcher's event loop on its own goroutine with
// its own recover: a recover deferred in main only catches panics unwound
// through main's own stack, never one raised on a goroutine spawned with
// go, so the dispatcher needs this wrapper to honor the panic-to-exit(77)
// contract (spec.md §6/§9).
func runDispatcher(disp *dispatcher.Dispatcher, events chan event.Event, log *logrus.Entry) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("fatal: dispatcher panicked")
			os.Exit(77)
		}
	}()
	disp.Run(events)
}

func serveMetrics(addr string, stats *selfstat.Stats, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(stats.Registry, promhttp.HandlerOpts{}))
	log.WithField("addr", addr).Info("metrics endpoint started")
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("metrics endpoint stopped")
	}
}

// buildBackends is the factory over cfg spec.md §9 calls for: one ordered
// list of Backend built from whichever --console/--graphite/--statsd/
// --statsd-zmq flags are set.
func buildBackends(cfg *config.Config, log *logrus.Logger) ([]backend.Backend, error) {
	var backends []backend.Backend

	if cfg.Console {
		backends = append(backends, console.New(log.WithField("component", "bootstrap")))
	}

	if cfg.Graphite {
		addr := fmt.Sprintf("%s:%d", cfg.GraphiteHost, cfg.GraphitePort)
		backends = append(backends, graphite.New(graphite.Config{
			Address:       addr,
			PrefixCounter: firstNonEmpty(cfg.GraphitePrefixCounter, cfg.GraphitePrefixGlobal),
			PrefixGauge:   firstNonEmpty(cfg.GraphitePrefixGauge, cfg.GraphitePrefixGlobal),
			PrefixTimer:   firstNonEmpty(cfg.GraphitePrefixTimer, cfg.GraphitePrefixGlobal),
		}, log.WithField("component", "bootstrap")))
	}

	if cfg.Statsd {
		hosts := cfg.StatsdHosts
		if len(hosts) == 0 && cfg.StatsdHost != "" {
			hosts = []string{fmt.Sprintf("%s:%d", cfg.StatsdHost, cfg.StatsdPort)}
		}
		if len(hosts) == 0 {
			return nil, fmt.Errorf("--statsd requires --statsd-hosts or --statsd-host/--statsd-port")
		}
		mode := relay.Broadcast
		if cfg.StatsdRelayMode == "consistent_hash" {
			mode = relay.ConsistentHash
		}
		backends = append(backends, relay.New(relay.Config{
			Hosts:      hosts,
			PacketSize: cfg.StatsdPacketSize,
			Mode:       mode,
		}, log.WithField("component", "bootstrap")))
	}

	if cfg.StatsdZmq {
		if len(cfg.StatsdZmqHosts) == 0 {
			return nil, fmt.Errorf("--statsd-zmq requires --statsd-zmq-hosts")
		}
		backends = append(backends, relayzmq.New(relayzmq.Config{
			Hosts: cfg.StatsdZmqHosts,
		}, log.WithField("component", "bootstrap")))
	}

	return backends, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
