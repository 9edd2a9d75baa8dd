package gateway

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the gateway's Prometheus metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	Commands        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	TransportWrites *prometheus.CounterVec
}

// NewCollector registers gateway metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	commands, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_commands_total",
		Help: "Commands received, labeled by inbound shape and outcome.",
	}, []string{"shape", "outcome"}), "gateway_commands_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gateway_request_duration_seconds",
		Help:    "Command intake latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"code"}), "gateway_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	writes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_transport_writes_total",
		Help: "Radio transmissions, labeled by transport mode and outcome.",
	}, []string{"mode", "outcome"}), "gateway_transport_writes_total")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Commands:        commands,
		RequestDuration: durations,
		TransportWrites: writes,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func (c *Collector) command(shape, outcome string) {
	if c == nil {
		return
	}
	c.Commands.WithLabelValues(shape, outcome).Inc()
}

func (c *Collector) transportWrite(mode, outcome string) {
	if c == nil {
		return
	}
	c.TransportWrites.WithLabelValues(mode, outcome).Inc()
}

func (c *Collector) observe(code int, seconds float64) {
	if c == nil {
		return
	}
	c.RequestDuration.WithLabelValues(fmt.Sprint(code)).Observe(seconds)
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
