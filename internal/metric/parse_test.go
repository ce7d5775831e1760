package metric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine_Counter(t *testing.T) {
	m, err := ParseLine("a:1|c")
	require.NoError(t, err)
	assert.Equal(t, "a", m.Name)
	assert.Equal(t, Counter, m.Kind)
	assert.Equal(t, 1.0, m.Value)
	assert.Equal(t, 1.0, m.SampleRate)
}

func TestParseLine_CounterWithSampleRate(t *testing.T) {
	m, err := ParseLine("a:1|c|@0.1")
	require.NoError(t, err)
	assert.Equal(t, 0.1, m.SampleRate)
}

func TestParseLine_GaugeSetVsDelta(t *testing.T) {
	set, err := ParseLine("g:100|g")
	require.NoError(t, err)
	assert.Equal(t, GaugeSet, set.GaugeMode)
	assert.Equal(t, 100.0, set.Value)

	delta, err := ParseLine("g:+5|g")
	require.NoError(t, err)
	assert.Equal(t, GaugeDelta, delta.GaugeMode)
	assert.Equal(t, 5.0, delta.Value)

	negDelta, err := ParseLine("g:-30|g")
	require.NoError(t, err)
	assert.Equal(t, GaugeDelta, negDelta.GaugeMode)
	assert.Equal(t, -30.0, negDelta.Value)
}

func TestParseLine_Timer(t *testing.T) {
	m, err := ParseLine("t:42|ms")
	require.NoError(t, err)
	assert.Equal(t, Timer, m.Kind)
	assert.Equal(t, 42.0, m.Value)
}

func TestParseLine_Histogram(t *testing.T) {
	m, err := ParseLine("h:42|h")
	require.NoError(t, err)
	assert.Equal(t, Histogram, m.Kind)
}

func TestParseLine_Set(t *testing.T) {
	m, err := ParseLine("u:alice|s")
	require.NoError(t, err)
	assert.Equal(t, Set, m.Kind)
	assert.Equal(t, "alice", m.StrValue)
}

func TestParseLine_Malformed(t *testing.T) {
	cases := []string{
		"bogus line",
		"a:1",
		"a:|c",
		":1|c",
		"a:1|bogus",
		"a:1|c|@2",
		"a:1|c|@-1",
		"a:x|c",
	}
	for _, line := range cases {
		_, err := ParseLine(line)
		assert.ErrorIs(t, err, ErrParse, "line %q should have failed to parse", line)
	}
}

func TestParseDatagram_PerLineTolerance(t *testing.T) {
	metrics, bad := ParseDatagram([]byte("bogus line\nok:1|c\n"))
	require.Len(t, metrics, 1)
	assert.Equal(t, "ok", metrics[0].Name)
	assert.Equal(t, 1, bad)
}

func TestParseDatagram_InvalidUTF8(t *testing.T) {
	metrics, bad := ParseDatagram([]byte{0xff, 0xfe, 0xfd})
	assert.Nil(t, metrics)
	assert.Equal(t, 1, bad)
}

func TestParseDatagram_MultipleWellFormedLines(t *testing.T) {
	metrics, bad := ParseDatagram([]byte("a:1|c\na:2|c\n"))
	require.Len(t, metrics, 2)
	assert.Equal(t, 0, bad)
}
