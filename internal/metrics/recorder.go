package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the single hook components use to report samples. The name
// identifies the series; for per-type series the name carries the type as a
// suffix after a dot (e.g. "messages.price_update").
type Recorder interface {
	RecordSample(name string, value float64)
}

// Well-known sample names.
const (
	SampleConnectionState   = "connection_state" // gauge: see feed.State codes
	SampleReconnectAttempts = "reconnect_attempts"
	SampleParseErrors       = "parse_errors"
	SampleUnknownMessages   = "unknown_messages"
	SampleCacheSize         = "cache_size"
	SampleMessages          = "messages" // use "messages.<type>"
	SampleSignals           = "signals"  // use "signals.<kind>"
)

// Noop discards all samples.
type Noop struct{}

// RecordSample implements Recorder.
func (Noop) RecordSample(string, float64) {}

// PromRecorder implements Recorder on top of a private Prometheus registry.
type PromRecorder struct {
	reg *prometheus.Registry

	connState  prometheus.Gauge
	reconnects prometheus.Counter
	parseErrs  prometheus.Counter
	unknown    prometheus.Counter
	cacheSize  prometheus.Gauge
	messages   *prometheus.CounterVec
	signals    *prometheus.CounterVec
}

// NewPromRecorder creates a recorder with all series registered.
func NewPromRecorder() *PromRecorder {
	r := &PromRecorder{
		reg: prometheus.NewRegistry(),
		connState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketstream_connection_state",
			Help: "Connection state (0=idle 1=connecting 2=connected 3=disconnected 4=reconnect_scheduled)",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketstream_reconnect_attempts_total",
			Help: "Reconnect attempts scheduled",
		}),
		parseErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketstream_parse_errors_total",
			Help: "Inbound frames that failed to parse",
		}),
		unknown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketstream_unknown_messages_total",
			Help: "Well-formed frames with an unrecognized type",
		}),
		cacheSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketstream_price_cache_size",
			Help: "Markets with a cached last price",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_messages_total",
			Help: "Inbound messages by type",
		}, []string{"type"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketstream_signals_total",
			Help: "Derived signals by kind",
		}, []string{"kind"}),
	}

	r.reg.MustRegister(
		r.connState,
		r.reconnects,
		r.parseErrs,
		r.unknown,
		r.cacheSize,
		r.messages,
		r.signals,
		collectors.NewGoCollector(),
	)

	return r
}

// RecordSample implements Recorder.
func (r *PromRecorder) RecordSample(name string, value float64) {
	base, suffix, _ := strings.Cut(name, ".")

	switch base {
	case SampleConnectionState:
		r.connState.Set(value)
	case SampleReconnectAttempts:
		r.reconnects.Add(value)
	case SampleParseErrors:
		r.parseErrs.Add(value)
	case SampleUnknownMessages:
		r.unknown.Add(value)
	case SampleCacheSize:
		r.cacheSize.Set(value)
	case SampleMessages:
		r.messages.WithLabelValues(suffix).Add(value)
	case SampleSignals:
		r.signals.WithLabelValues(suffix).Add(value)
	}
}

// Handler returns an HTTP handler exposing the registry.
func (r *PromRecorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
