// Package console implements the console backend: a flush-time dump of the
// aggregated buckets, grounded on pavelnikolov-gostatsd's ConsoleServer
// stats formatting (adapted from an admin-command string builder to a
// flush-time projection). It logs counters, then gauges, then timers, then
// sets.
package console

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/GiedriusS/statsd-server/internal/buckets"
)

// Backend prints the aggregated buckets through a logger on every flush.
type Backend struct {
	log *logrus.Entry
}

// New returns a console backend logging through log.
func New(log *logrus.Entry) *Backend {
	return &Backend{log: log.WithField("backend", "console")}
}

func (*Backend) Name() string { return "console" }

// FlushBuckets logs one line per counter, gauge, timer and set.
func (b *Backend) FlushBuckets(snap *buckets.Snapshot) error {
	for _, name := range sortedKeys(snap.Counters) {
		b.log.WithFields(logrus.Fields{
			"name": name, "value": snap.Counters[name], "rate": snap.CounterRates[name],
		}).Info("counter")
	}
	for _, name := range sortedKeys(snap.Gauges) {
		b.log.WithFields(logrus.Fields{"name": name, "value": snap.Gauges[name]}).Info("gauge")
	}
	for name, ts := range snap.TimerData {
		b.log.WithFields(logrus.Fields{
			"name": name, "count": ts.Count, "min": ts.Min, "max": ts.Max,
			"mean": ts.Mean, "median": ts.Median, "std": ts.Std,
			"upper_90": ts.Upper[90], "rate": ts.Rate,
		}).Info("timer")
	}
	for name, card := range snap.Sets {
		b.log.WithFields(logrus.Fields{"name": name, "count": card}).Info("set")
	}
	return nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
