package admin

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GiedriusS/statsd-server/internal/buckets"
	"github.com/GiedriusS/statsd-server/internal/event"
	"github.com/GiedriusS/statsd-server/internal/selfstat"
	"github.com/GiedriusS/statsd-server/internal/snapshot"
)

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(nopWriter{})
	return log.WithField("component", "test")
}

func readLinesUntilEnd(t *testing.T, r *bufio.Reader) []string {
	t.Helper()
	var lines []string
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		if line == "END\n" {
			return lines
		}
		lines = append(lines, line)
	}
}

func TestAdmin_StatsBeforeFirstFlush(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cell := &snapshot.Cell{}
	deleteCh := make(chan event.DeleteRequest, 1)
	stats := selfstat.New()

	go HandleConnection(event.TcpMessage{Conn: server}, cell, deleteCh, stats, testLogger())

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("stats\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "ERROR")
}

func TestAdmin_CountersAfterFlush(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cell := &snapshot.Cell{}
	cell.Publish(&buckets.Snapshot{
		Counters: map[string]float64{"a": 3, "b": 1},
		Gauges:   map[string]float64{},
	})
	deleteCh := make(chan event.DeleteRequest, 1)
	stats := selfstat.New()

	go HandleConnection(event.TcpMessage{Conn: server}, cell, deleteCh, stats, testLogger())

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("counters\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	lines := readLinesUntilEnd(t, r)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "a 3")
	assert.Contains(t, lines[1], "b 1")
}

func TestAdmin_UnknownCommand(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cell := &snapshot.Cell{}
	deleteCh := make(chan event.DeleteRequest, 1)
	stats := selfstat.New()

	go HandleConnection(event.TcpMessage{Conn: server}, cell, deleteCh, stats, testLogger())

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("bogus\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, "ERROR Unknown command")
}

func TestAdmin_DelCountersRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cell := &snapshot.Cell{}
	deleteCh := make(chan event.DeleteRequest, 1)
	stats := selfstat.New()

	go HandleConnection(event.TcpMessage{Conn: server}, cell, deleteCh, stats, testLogger())

	go func() {
		req := <-deleteCh
		assert.Equal(t, event.DeleteCounter, req.Kind)
		assert.Equal(t, []string{"a"}, req.Names)
		req.Result <- 1
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("delcounters a\n"))
	require.NoError(t, err)

	r := bufio.NewReader(client)
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "deleted 1\n", line)
}

func TestAdmin_Quit(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	cell := &snapshot.Cell{}
	deleteCh := make(chan event.DeleteRequest, 1)
	stats := selfstat.New()

	done := make(chan struct{})
	go func() {
		HandleConnection(event.TcpMessage{Conn: server}, cell, deleteCh, stats, testLogger())
		close(done)
	}()

	client.SetDeadline(time.Now().Add(2 * time.Second))
	_, err := client.Write([]byte("quit\n"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("HandleConnection did not return after quit")
	}
}
