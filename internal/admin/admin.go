// Package admin implements the line-oriented TCP admin protocol of
// spec.md §4.6: stats/counters/gauges/timers/delcounters/delgauges/
// deltimers/quit, responses terminated with "END\n". Grounded on
// pavelnikolov-gostatsd's ConsoleServer command table and on
// justeat-statsdaemon's handleApiRequest/adminListener connection
// handling (one goroutine per connection, line-at-a-time command read).
package admin

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/buckets"
	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
	"github.com/GiedriusS/statsd-server/internal/snapshot"
)

// HandleConnection serves one admin connection until it sends "quit" or
// closes. It reads a read-only Snapshot from cell for every command and
// relays delete commands to the dispatcher via deleteCh. Intended to be
// launched as dispatcher.AdminHandler, one goroutine per connection.
func HandleConnection(msg event.TcpMessage, cell *snapshot.Cell, deleteCh chan<- event.DeleteRequest, stats *selfstat.Stats, log *logrus.Entry) {
	conn := msg.Conn
	defer conn.Close()

	stats.AdminConnections.Inc()
	stats.AdminConnectionsCur.Inc()
	defer stats.AdminConnectionsCur.Dec()

	log = log.WithField("component", "admin").WithField("remote", conn.RemoteAddr().String())
	scanner := bufio.NewScanner(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := strings.ToLower(fields[0])
		args := fields[1:]

		switch cmd {
		case "quit":
			return
		case "stats":
			writeStats(conn, cell.Load())
		case "counters":
			writeCounters(conn, cell.Load())
		case "gauges":
			writeGauges(conn, cell.Load())
		case "timers":
			writeTimers(conn, cell.Load())
		case "delcounters":
			writeDeleteResult(conn, deleteCh, event.DeleteCounter, args)
		case "delgauges":
			writeDeleteResult(conn, deleteCh, event.DeleteGauge, args)
		case "deltimers":
			writeDeleteResult(conn, deleteCh, event.DeleteTimer, args)
		default:
			fmt.Fprintf(conn, "ERROR Unknown command\nEND\n")
		}
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).Debug("admin connection read error")
	}
}

func writeStats(conn io.Writer, snap *buckets.Snapshot) {
	if snap == nil {
		fmt.Fprintf(conn, "ERROR no flush has completed yet\nEND\n")
		return
	}
	uptime := time.Since(snap.StartTime)
	fmt.Fprintf(conn, "uptime %s\n", uptime)
	fmt.Fprintf(conn, "metrics_received %d\n", snap.MetricsReceived)
	fmt.Fprintf(conn, "bad_messages %d\n", snap.BadMessages)
	fmt.Fprintf(conn, "last_message %s\n", snap.LastMessage.Format(time.RFC3339))
	fmt.Fprintf(conn, "flush_interval %s\n", snap.FlushInterval)
	fmt.Fprintf(conn, "END\n")
}

func writeCounters(conn io.Writer, snap *buckets.Snapshot) {
	if snap == nil {
		fmt.Fprintf(conn, "END\n")
		return
	}
	for _, name := range sortedKeys(snap.Counters) {
		fmt.Fprintf(conn, "%s %f\n", name, snap.Counters[name])
	}
	fmt.Fprintf(conn, "END\n")
}

func writeGauges(conn io.Writer, snap *buckets.Snapshot) {
	if snap == nil {
		fmt.Fprintf(conn, "END\n")
		return
	}
	for _, name := range sortedKeys(snap.Gauges) {
		fmt.Fprintf(conn, "%s %f\n", name, snap.Gauges[name])
	}
	fmt.Fprintf(conn, "END\n")
}

func writeTimers(conn io.Writer, snap *buckets.Snapshot) {
	if snap == nil {
		fmt.Fprintf(conn, "END\n")
		return
	}
	names := make([]string, 0, len(snap.TimerData))
	for name := range snap.TimerData {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ts := snap.TimerData[name]
		fmt.Fprintf(conn, "%s count=%d min=%f max=%f mean=%f median=%f std=%f upper_90=%f rate=%f\n",
			name, ts.Count, ts.Min, ts.Max, ts.Mean, ts.Median, ts.Std, ts.Upper[90], ts.Rate)
	}
	fmt.Fprintf(conn, "END\n")
}

func writeDeleteResult(conn io.Writer, deleteCh chan<- event.DeleteRequest, kind event.DeleteKind, names []string) {
	if len(names) == 0 {
		fmt.Fprintf(conn, "ERROR missing metric name\nEND\n")
		return
	}
	result := make(chan int, 1)
	deleteCh <- event.DeleteRequest{Kind: kind, Names: names, Result: result}
	n := <-result
	fmt.Fprintf(conn, "deleted %d\nEND\n", n)
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
