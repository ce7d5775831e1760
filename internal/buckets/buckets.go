// Package buckets implements the in-memory aggregation state: counters,
// gauges, timers, sets and the meta-counters the admin channel reports.
// Buckets is mutated exclusively by the dispatcher goroutine (see
// internal/dispatcher); all other readers use an immutable Snapshot.
package buckets

import (
	"time"

	"github.com/GiedriusS/statsd-server/internal/metric"
)

// Buckets is the aggregation state for one flush interval.
type Buckets struct {
	FlushInterval time.Duration
	DeleteGauges  bool

	Counters map[string]float64
	Gauges   map[string]float64
	Timers   map[string][]float64
	Sets     map[string]map[string]struct{}

	CounterRates map[string]float64
	TimerData    map[string]TimerStats

	BadMessages     int64
	MetricsReceived int64
	LastMessage     time.Time
	StartTime       time.Time
}

// New creates an empty Buckets ready to accept metrics.
func New(flushInterval time.Duration, deleteGauges bool) *Buckets {
	now := time.Now()
	return &Buckets{
		FlushInterval: flushInterval,
		DeleteGauges:  deleteGauges,
		Counters:      make(map[string]float64),
		Gauges:        make(map[string]float64),
		Timers:        make(map[string][]float64),
		Sets:          make(map[string]map[string]struct{}),
		CounterRates:  make(map[string]float64),
		TimerData:     make(map[string]TimerStats),
		StartTime:     now,
	}
}

// Add ingests one well-formed metric, mutating the relevant bucket.
func (b *Buckets) Add(m metric.Metric) {
	switch m.Kind {
	case metric.Counter:
		rate := m.SampleRate
		if rate <= 0 {
			rate = 1
		}
		b.Counters[m.Name] += m.Value * (1 / rate)
	case metric.Gauge:
		switch m.GaugeMode {
		case metric.GaugeDelta:
			b.Gauges[m.Name] += m.Value
		default:
			b.Gauges[m.Name] = m.Value
		}
	case metric.Timer, metric.Histogram:
		b.Timers[m.Name] = append(b.Timers[m.Name], m.Value)
	case metric.Set:
		set, ok := b.Sets[m.Name]
		if !ok {
			set = make(map[string]struct{})
			b.Sets[m.Name] = set
		}
		set[m.StrValue] = struct{}{}
	}
	b.MetricsReceived++
	b.LastMessage = time.Now()
}

// AddBadMessage records one undecodable datagram or malformed line.
func (b *Buckets) AddBadMessage() {
	b.BadMessages++
}

// Process derives CounterRates and TimerData from the raw samples without
// mutating the raw counters/timers maps, so the dispatcher can flush them
// to the backends before Reset clears them.
func (b *Buckets) Process() {
	seconds := b.FlushInterval.Seconds()
	if seconds <= 0 {
		seconds = 1
	}

	b.CounterRates = make(map[string]float64, len(b.Counters))
	for name, sum := range b.Counters {
		b.CounterRates[name] = sum / seconds
	}

	b.TimerData = make(map[string]TimerStats, len(b.Timers))
	for name, samples := range b.Timers {
		if len(samples) == 0 {
			continue
		}
		b.TimerData[name] = computeTimerStats(samples, seconds)
	}
}

// Reset clears per-interval state. Gauges persist unless DeleteGauges is
// set. MetricsReceived and StartTime are monotonic/fixed and survive.
func (b *Buckets) Reset() {
	b.Counters = make(map[string]float64)
	b.Timers = make(map[string][]float64)
	b.Sets = make(map[string]map[string]struct{})
	b.TimerData = make(map[string]TimerStats)
	b.CounterRates = make(map[string]float64)
	b.BadMessages = 0
	if b.DeleteGauges {
		b.Gauges = make(map[string]float64)
	}
}

// Snapshot is an immutable copy of Buckets published after each flush for
// read-only consumers (the admin channel). Callers must not mutate it.
type Snapshot struct {
	FlushInterval time.Duration

	Counters     map[string]float64
	CounterRates map[string]float64
	Gauges       map[string]float64
	TimerData    map[string]TimerStats
	Sets         map[string]int // cardinality only, per spec: values need not be retained

	BadMessages     int64
	MetricsReceived int64
	LastMessage     time.Time
	StartTime       time.Time
}

// Clone produces a read-only Snapshot of the current state. Intended to be
// called by the dispatcher right after Process, before Reset.
func (b *Buckets) Clone() *Snapshot {
	s := &Snapshot{
		FlushInterval:   b.FlushInterval,
		Counters:        make(map[string]float64, len(b.Counters)),
		CounterRates:    make(map[string]float64, len(b.CounterRates)),
		Gauges:          make(map[string]float64, len(b.Gauges)),
		TimerData:       make(map[string]TimerStats, len(b.TimerData)),
		Sets:            make(map[string]int, len(b.Sets)),
		BadMessages:     b.BadMessages,
		MetricsReceived: b.MetricsReceived,
		LastMessage:     b.LastMessage,
		StartTime:       b.StartTime,
	}
	for k, v := range b.Counters {
		s.Counters[k] = v
	}
	for k, v := range b.CounterRates {
		s.CounterRates[k] = v
	}
	for k, v := range b.Gauges {
		s.Gauges[k] = v
	}
	for k, v := range b.TimerData {
		s.TimerData[k] = v
	}
	for k, v := range b.Sets {
		s.Sets[k] = len(v)
	}
	return s
}

// DeleteCounter removes name from the live Counters map, used by the admin
// channel's delcounters command. Returns whether it existed.
func (b *Buckets) DeleteCounter(name string) bool {
	_, ok := b.Counters[name]
	delete(b.Counters, name)
	delete(b.CounterRates, name)
	return ok
}

// DeleteGauge removes name from the live Gauges map.
func (b *Buckets) DeleteGauge(name string) bool {
	_, ok := b.Gauges[name]
	delete(b.Gauges, name)
	return ok
}

// DeleteTimer removes name from the live Timers map.
func (b *Buckets) DeleteTimer(name string) bool {
	_, ok := b.Timers[name]
	delete(b.Timers, name)
	delete(b.TimerData, name)
	return ok
}
