package dispatcher

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiedriusS/statsd-server/internal/backend"
	"github.com/GiedriusS/statsd-server/internal/buckets"
	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/metric"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
	"github.com/GiedriusS/statsd-server/internal/snapshot"
)

// fakeBackend records every snapshot it is handed, for assertion, and can
// be made to fail on demand to exercise the "other backends still flush"
// error path (spec.md §7).
type fakeBackend struct {
	mu    sync.Mutex
	snaps []*buckets.Snapshot
	fail  bool
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) FlushBuckets(snap *buckets.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("fake backend failure")
	}
	f.snaps = append(f.snaps, snap)
	return nil
}

func (f *fakeBackend) last() *buckets.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.snaps) == 0 {
		return nil
	}
	return f.snaps[len(f.snaps)-1]
}

func newTestDispatcher(backends []backend.Backend) (*Dispatcher, chan event.Event) {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	b := buckets.New(10*time.Second, false)
	cell := &snapshot.Cell{}
	stats := selfstat.New()
	d := New(b, backends, cell, stats, log.WithField("component", "test"))
	ch := make(chan event.Event, 64)
	go d.Run(ch)
	return d, ch
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func sendUDP(t *testing.T, ch chan<- event.Event, line string) {
	t.Helper()
	ch <- event.UdpMessage{Data: []byte(line)}
}

// S1
func TestDispatcher_CounterSum(t *testing.T) {
	fb := &fakeBackend{}
	_, ch := newTestDispatcher([]backend.Backend{fb})

	sendUDP(t, ch, "a:1|c\n")
	sendUDP(t, ch, "a:2|c\n")
	ch <- event.TimerFlush{At: time.Now()}

	require.Eventually(t, func() bool { return fb.last() != nil }, time.Second, time.Millisecond)
	snap := fb.last()
	assert.Equal(t, 3.0, snap.Counters["a"])
	assert.InDelta(t, 0.3, snap.CounterRates["a"], 1e-9)
}

// S5: a malformed line in a datagram does not block the well-formed ones.
func TestDispatcher_BadLineDoesNotBlockDatagram(t *testing.T) {
	fb := &fakeBackend{}
	_, ch := newTestDispatcher([]backend.Backend{fb})

	sendUDP(t, ch, "bogus line\nok:1|c\n")
	ch <- event.TimerFlush{At: time.Now()}

	require.Eventually(t, func() bool { return fb.last() != nil }, time.Second, time.Millisecond)
	snap := fb.last()
	assert.Equal(t, 1.0, snap.Counters["ok"])
	assert.EqualValues(t, 1, snap.BadMessages, "the flushed snapshot carries the interval's bad_messages, taken before the reset")
}

func TestDispatcher_BackendErrorDoesNotBlockOtherBackends(t *testing.T) {
	failing := &fakeBackend{fail: true}
	ok := &fakeBackend{}
	_, ch := newTestDispatcher([]backend.Backend{failing, ok})

	sendUDP(t, ch, "a:1|c\n")
	ch <- event.TimerFlush{At: time.Now()}

	require.Eventually(t, func() bool { return ok.last() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, 1.0, ok.last().Counters["a"])
}

func TestDispatcher_ZmqBatch(t *testing.T) {
	fb := &fakeBackend{}
	_, ch := newTestDispatcher([]backend.Backend{fb})

	ch <- event.ZmqBatch{Metrics: []metric.Metric{
		{Name: "z", Kind: metric.Counter, Value: 5, SampleRate: 1},
	}}
	ch <- event.TimerFlush{At: time.Now()}

	require.Eventually(t, func() bool { return fb.last() != nil }, time.Second, time.Millisecond)
	assert.Equal(t, 5.0, fb.last().Counters["z"])
}

func TestDispatcher_TcpMessageWithoutAdminHandlerClosesConn(t *testing.T) {
	_, ch := newTestDispatcher(nil)

	client, server := net.Pipe()
	defer client.Close()
	ch <- event.TcpMessage{Conn: server}

	buf := make([]byte, 1)
	_, err := client.Read(buf)
	assert.Error(t, err, "connection should be closed when no AdminHandler is wired")
}

func TestDispatcher_DeleteRequest(t *testing.T) {
	fb := &fakeBackend{}
	_, ch := newTestDispatcher([]backend.Backend{fb})

	sendUDP(t, ch, "a:1|c\n")
	ch <- event.TimerFlush{At: time.Now()}
	require.Eventually(t, func() bool { return fb.last() != nil }, time.Second, time.Millisecond)

	// The flush reset the counters; add "a" again so the delete has a live
	// bucket to remove.
	sendUDP(t, ch, "a:1|c\n")
	result := make(chan int, 1)
	ch <- event.DeleteRequest{Kind: event.DeleteCounter, Names: []string{"a"}, Result: result}
	n := <-result
	assert.Equal(t, 1, n)
}
