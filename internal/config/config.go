// Package config defines the daemon's typed configuration, loaded from CLI
// flags (spf13/pflag) and, if --config is given, overlaid with a TOML file
// (BurntSushi/toml). Field layout and toml tags follow the style of the
// Statsd plugin's struct in the teacher, adapted from per-plugin TOML
// config to a single top-level daemon config.
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/pflag"
)

// Config is the full set of knobs spec.md §6 lists, plus the ambient
// additions (log level/format, metrics address) §10 of SPEC_FULL.md calls
// for.
type Config struct {
	Port     int    `toml:"port"`
	BindHost string `toml:"bind_host"`

	AdminHost string `toml:"admin_host"`
	AdminPort int    `toml:"admin_port"`

	FlushInterval time.Duration `toml:"-"`
	FlushSeconds  int           `toml:"flush_interval"`
	DeleteGauges  bool          `toml:"delete_gauges"`

	Console bool `toml:"console"`

	Graphite             bool   `toml:"graphite"`
	GraphiteHost         string `toml:"graphite_host"`
	GraphitePort         int    `toml:"graphite_port"`
	GraphitePrefixGlobal string `toml:"graphite_prefix"`
	GraphitePrefixCounter string `toml:"graphite_prefix_counter"`
	GraphitePrefixGauge   string `toml:"graphite_prefix_gauge"`
	GraphitePrefixTimer   string `toml:"graphite_prefix_timer"`

	Statsd            bool     `toml:"statsd"`
	StatsdHost        string   `toml:"statsd_host"`
	StatsdPort        int      `toml:"statsd_port"`
	StatsdHosts       []string `toml:"statsd_hosts"`
	StatsdPacketSize  int      `toml:"statsd_packet_size"`
	StatsdRelayMode   string   `toml:"statsd_relay_mode"` // "broadcast" | "consistent_hash"

	StatsdZmq      bool     `toml:"statsd_zmq"`
	StatsdZmqHosts []string `toml:"statsd_zmq_hosts"`

	ZeromqListen bool   `toml:"zeromq_listen"`
	ZeromqHost   string `toml:"zeromq_host"`
	ZeromqPort   int    `toml:"zeromq_port"`

	Benchmark bool `toml:"benchmark"`

	// [ADD] ambient, non-domain flags (SPEC_FULL.md §10/§6).
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"` // "text" | "json"
	MetricsAddress string `toml:"metrics_address"`
}

// Default returns a Config populated with the teacher-style defaults
// (10s flush interval, plain UDP ingest on :8125, admin on :8126).
func Default() *Config {
	return &Config{
		Port:                  8125,
		BindHost:              "0.0.0.0",
		AdminHost:             "127.0.0.1",
		AdminPort:             8126,
		FlushSeconds:          10,
		Console:               true,
		GraphitePort:          2003,
		GraphitePrefixCounter: "stats.",
		GraphitePrefixGauge:   "stats.gauges.",
		GraphitePrefixTimer:   "stats.timers.",
		StatsdPort:            8125,
		StatsdPacketSize:      1432,
		StatsdRelayMode:       "broadcast",
		ZeromqPort:            5555,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}

// ParseFlags builds a FlagSet mirroring spec.md §6's CLI surface, parses
// args into it, optionally overlays a --config TOML file, and returns the
// resolved Config. Flags take precedence over the file when both set the
// same field non-default (pflag parses after the TOML overlay below).
func ParseFlags(args []string) (*Config, error) {
	cfg := Default()
	fs := pflag.NewFlagSet("statsdaemon", pflag.ContinueOnError)

	configPath := fs.String("config", "", "path to an optional TOML config file")

	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to listen for statsd metrics on")
	fs.StringVar(&cfg.BindHost, "bind-host", cfg.BindHost, "address to bind the UDP listener on")
	fs.StringVar(&cfg.AdminHost, "admin-host", cfg.AdminHost, "address to bind the admin TCP listener on")
	fs.IntVar(&cfg.AdminPort, "admin-port", cfg.AdminPort, "TCP port for the admin channel")
	fs.IntVar(&cfg.FlushSeconds, "flush-interval", cfg.FlushSeconds, "seconds between flushes")
	fs.BoolVar(&cfg.DeleteGauges, "delete-gauges", cfg.DeleteGauges, "delete gauges on flush instead of persisting their last value")

	fs.BoolVar(&cfg.Console, "console", cfg.Console, "enable the console backend")

	fs.BoolVar(&cfg.Graphite, "graphite", cfg.Graphite, "enable the graphite backend")
	fs.StringVar(&cfg.GraphiteHost, "graphite-host", cfg.GraphiteHost, "graphite carbon-cache host")
	fs.IntVar(&cfg.GraphitePort, "graphite-port", cfg.GraphitePort, "graphite carbon-cache port")
	fs.StringVar(&cfg.GraphitePrefixGlobal, "graphite-prefix", cfg.GraphitePrefixGlobal, "graphite prefix for any kind whose per-kind prefix is empty (the per-kind prefixes default to non-empty values)")
	fs.StringVar(&cfg.GraphitePrefixCounter, "graphite-prefix-counter", cfg.GraphitePrefixCounter, "graphite prefix for counters")
	fs.StringVar(&cfg.GraphitePrefixGauge, "graphite-prefix-gauge", cfg.GraphitePrefixGauge, "graphite prefix for gauges")
	fs.StringVar(&cfg.GraphitePrefixTimer, "graphite-prefix-timer", cfg.GraphitePrefixTimer, "graphite prefix for timers")

	fs.BoolVar(&cfg.Statsd, "statsd", cfg.Statsd, "enable the statsd-relay-over-UDP backend")
	fs.StringVar(&cfg.StatsdHost, "statsd-host", cfg.StatsdHost, "deprecated single-host form of --statsd-hosts")
	fs.IntVar(&cfg.StatsdPort, "statsd-port", cfg.StatsdPort, "deprecated single-port form of --statsd-hosts")
	fs.StringSliceVar(&cfg.StatsdHosts, "statsd-hosts", cfg.StatsdHosts, "host:port destinations for the statsd-relay-over-UDP backend")
	fs.IntVar(&cfg.StatsdPacketSize, "statsd-packet-size", cfg.StatsdPacketSize, "max UDP payload size for relayed statsd datagrams")
	fs.StringVar(&cfg.StatsdRelayMode, "statsd-relay-mode", cfg.StatsdRelayMode, "routing across multiple --statsd-hosts: broadcast or consistent_hash")

	fs.BoolVar(&cfg.StatsdZmq, "statsd-zmq", cfg.StatsdZmq, "enable the statsd-relay-over-ZMQ backend")
	fs.StringSliceVar(&cfg.StatsdZmqHosts, "statsd-zmq-hosts", cfg.StatsdZmqHosts, "tcp:// ZMQ endpoints for the statsd-relay-over-ZMQ backend")

	fs.BoolVar(&cfg.ZeromqListen, "zeromq-listen", cfg.ZeromqListen, "enable ZMQ ingest alongside UDP")
	fs.StringVar(&cfg.ZeromqHost, "zeromq-host", cfg.ZeromqHost, "address to bind the ZMQ PULL socket on")
	fs.IntVar(&cfg.ZeromqPort, "zeromq-port", cfg.ZeromqPort, "port to bind the ZMQ PULL socket on")

	fs.BoolVar(&cfg.Benchmark, "benchmark", cfg.Benchmark, "accepted for CLI compatibility; has no effect")

	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "logrus level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "logrus formatter: text or json")
	fs.StringVar(&cfg.MetricsAddress, "metrics-address", cfg.MetricsAddress, "optional host:port to serve Prometheus /metrics on")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, cfg); err != nil {
			return nil, fmt.Errorf("config: decoding %s: %w", *configPath, err)
		}
		// Flags override file values: re-parse so any flag explicitly
		// passed on the command line wins over the file's value. A slice
		// flag appends on every Set after its first, so clear the ones
		// given on the command line before parsing them again.
		for name, hosts := range map[string]*[]string{
			"statsd-hosts":     &cfg.StatsdHosts,
			"statsd-zmq-hosts": &cfg.StatsdZmqHosts,
		} {
			if fs.Changed(name) {
				*hosts = nil
			}
		}
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
	}

	cfg.FlushInterval = time.Duration(cfg.FlushSeconds) * time.Second
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("config: flush-interval must be positive, got %ds", cfg.FlushSeconds)
	}

	return cfg, nil
}
