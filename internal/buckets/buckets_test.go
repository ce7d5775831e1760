package buckets

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiedriusS/statsd-server/internal/metric"
)

func counter(name string, value, rate float64) metric.Metric {
	return metric.Metric{Name: name, Kind: metric.Counter, Value: value, SampleRate: rate}
}

func gaugeSet(name string, value float64) metric.Metric {
	return metric.Metric{Name: name, Kind: metric.Gauge, Value: value, GaugeMode: metric.GaugeSet}
}

func gaugeDelta(name string, value float64) metric.Metric {
	return metric.Metric{Name: name, Kind: metric.Gauge, Value: value, GaugeMode: metric.GaugeDelta}
}

func timer(name string, value float64) metric.Metric {
	return metric.Metric{Name: name, Kind: metric.Timer, Value: value, SampleRate: 1}
}

// S1
func TestScenario_CounterSum(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(counter("a", 1, 1))
	b.Add(counter("a", 2, 1))
	b.Process()

	assert.Equal(t, 3.0, b.Counters["a"])
	assert.InDelta(t, 0.3, b.CounterRates["a"], 1e-9)
}

// S2
func TestScenario_CounterSampleRate(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(counter("a", 1, 0.1))
	b.Process()

	assert.InDelta(t, 10.0, b.Counters["a"], 1e-9)
	assert.InDelta(t, 1.0, b.CounterRates["a"], 1e-9)
}

// S3
func TestScenario_GaugeSetThenDeltas(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(gaugeSet("g", 100))
	b.Add(gaugeDelta("g", -30))
	b.Add(gaugeDelta("g", 5))
	b.Process()

	assert.Equal(t, 75.0, b.Gauges["g"])
}

// S4
func TestScenario_TimerStats(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(timer("t", 1))
	b.Add(timer("t", 2))
	b.Add(timer("t", 3))
	b.Add(timer("t", 4))
	b.Process()

	ts := b.TimerData["t"]
	assert.Equal(t, 4, ts.Count)
	assert.Equal(t, 1.0, ts.Min)
	assert.Equal(t, 4.0, ts.Max)
	assert.InDelta(t, 2.5, ts.Mean, 1e-9)
	assert.InDelta(t, 2.0, ts.Median, 1e-9)
	assert.InDelta(t, 4.0, ts.Upper[90], 1e-9)
	assert.InDelta(t, 0.4, ts.Rate, 1e-9)
}

// S5
func TestScenario_BadMessageResetsToZero(t *testing.T) {
	b := New(10*time.Second, false)
	b.AddBadMessage()
	b.Add(counter("ok", 1, 1))
	assert.EqualValues(t, 1, b.BadMessages)

	b.Process()
	assert.Equal(t, 1.0, b.Counters["ok"])

	b.Reset()
	assert.EqualValues(t, 0, b.BadMessages)
	assert.Empty(t, b.Counters)
}

// S6
func TestScenario_DeleteGauges(t *testing.T) {
	b := New(10*time.Second, true)
	b.Add(gaugeSet("g", 5))
	b.Process()
	first := b.Clone()
	assert.Equal(t, 5.0, first.Gauges["g"])
	b.Reset()

	b.Process()
	second := b.Clone()
	assert.Empty(t, second.Gauges)
}

func TestGaugesPersistAcrossResetWhenNotDeleted(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(gaugeSet("g", 5))
	b.Process()
	b.Reset()

	assert.Equal(t, 5.0, b.Gauges["g"])
}

func TestSets_DistinctValueCardinality(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(metric.Metric{Name: "u", Kind: metric.Set, StrValue: "alice"})
	b.Add(metric.Metric{Name: "u", Kind: metric.Set, StrValue: "bob"})
	b.Add(metric.Metric{Name: "u", Kind: metric.Set, StrValue: "alice"})

	snap := b.Clone()
	assert.Equal(t, 2, snap.Sets["u"])
}

func TestMetricsReceivedSurvivesReset(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(counter("a", 1, 1))
	b.Process()
	b.Reset()

	assert.EqualValues(t, 1, b.MetricsReceived)
}

func TestDeleteCounterGaugeTimer(t *testing.T) {
	b := New(10*time.Second, false)
	b.Add(counter("a", 1, 1))
	b.Add(gaugeSet("g", 1))
	b.Add(timer("t", 1))
	b.Process()

	assert.True(t, b.DeleteCounter("a"))
	assert.False(t, b.DeleteCounter("a"))
	assert.True(t, b.DeleteGauge("g"))
	assert.True(t, b.DeleteTimer("t"))

	assert.Empty(t, b.Counters)
	assert.Empty(t, b.Gauges)
	assert.Empty(t, b.Timers)
}

// Property 7: concurrent Add from N producers serialized through a single
// goroutine (mirroring how the dispatcher is the sole mutator) must not
// lose or corrupt any contribution.
func TestConcurrentAdd_SerializedTotalsAreExact(t *testing.T) {
	b := New(10*time.Second, false)
	const producers = 8
	const perProducer = 500

	in := make(chan metric.Metric, producers*perProducer)
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				in <- counter("a", 1, 1)
			}
		}()
	}
	wg.Wait()
	close(in)

	for m := range in {
		b.Add(m)
	}

	require.Equal(t, float64(producers*perProducer), b.Counters["a"])
	require.EqualValues(t, producers*perProducer, b.MetricsReceived)
}
