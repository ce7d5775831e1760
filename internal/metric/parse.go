package metric

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ParseDatagram decodes one UDP datagram into well-formed metrics.
//
// Non-UTF-8 input is rejected wholesale (the whole datagram counts as a
// single bad message). Otherwise the datagram is split on '\n' and every
// non-empty line is parsed independently: malformed lines are counted in
// badLines but do not prevent well-formed lines in the same datagram from
// being accepted, matching the teacher's per-line tolerance in
// Statsd.parser/parseStatsdLine.
func ParseDatagram(data []byte) (metrics []Metric, badLines int) {
	if !utf8.Valid(data) {
		return nil, 1
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m, err := ParseLine(line)
		if err != nil {
			badLines++
			continue
		}
		metrics = append(metrics, m)
	}
	return metrics, badLines
}

// ParseLine parses one line of the form "name:value|type[|@rate]".
func ParseLine(line string) (Metric, error) {
	colon := strings.IndexByte(line, ':')
	if colon <= 0 {
		return Metric{}, fmt.Errorf("%w: missing or empty name in %q", ErrParse, line)
	}
	name := line[:colon]
	if strings.ContainsAny(name, " \t:|@") {
		return Metric{}, fmt.Errorf("%w: invalid name %q", ErrParse, name)
	}
	rest := line[colon+1:]

	fields := strings.Split(rest, "|")
	if len(fields) < 2 {
		return Metric{}, fmt.Errorf("%w: missing type in %q", ErrParse, line)
	}

	valueToken := fields[0]
	if valueToken == "" {
		return Metric{}, fmt.Errorf("%w: missing value in %q", ErrParse, line)
	}

	kind, err := parseKind(fields[1])
	if err != nil {
		return Metric{}, fmt.Errorf("%w: %s in %q", ErrParse, err, line)
	}

	sampleRate := 1.0
	if len(fields) > 2 {
		sampleRate, err = parseSampleRate(fields[2])
		if err != nil {
			return Metric{}, fmt.Errorf("%w: %s in %q", ErrParse, err, line)
		}
	}

	m := Metric{Name: name, Kind: kind, SampleRate: sampleRate}

	switch kind {
	case Gauge:
		mode := GaugeSet
		if valueToken[0] == '+' || valueToken[0] == '-' {
			mode = GaugeDelta
		}
		v, err := strconv.ParseFloat(valueToken, 64)
		if err != nil {
			return Metric{}, fmt.Errorf("%w: bad gauge value %q", ErrParse, valueToken)
		}
		m.Value = v
		m.GaugeMode = mode
	case Counter, Timer, Histogram:
		v, err := strconv.ParseFloat(valueToken, 64)
		if err != nil {
			return Metric{}, fmt.Errorf("%w: bad value %q", ErrParse, valueToken)
		}
		m.Value = v
	case Set:
		m.StrValue = valueToken
	}

	return m, nil
}

func parseKind(token string) (Kind, error) {
	switch token {
	case "c":
		return Counter, nil
	case "g":
		return Gauge, nil
	case "ms":
		return Timer, nil
	case "h":
		return Histogram, nil
	case "s":
		return Set, nil
	default:
		return 0, fmt.Errorf("unknown type %q", token)
	}
}

func parseSampleRate(token string) (float64, error) {
	if len(token) < 2 || token[0] != '@' {
		return 0, fmt.Errorf("invalid sample rate %q", token)
	}
	r, err := strconv.ParseFloat(token[1:], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sample rate %q", token)
	}
	if r <= 0 || r > 1 {
		return 0, fmt.Errorf("sample rate %q out of range (0,1]", token)
	}
	return r, nil
}
