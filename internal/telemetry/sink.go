package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/usvlab/boatlink/internal/config"
)

// ErrUnreachable marks a connection-level failure: the sink could not be
// reached at all. The runner backs off and restarts its round on it.
var ErrUnreachable = errors.New("telemetry sink unreachable")

// DeliveryError is returned when the sink answered with a non-success status.
type DeliveryError struct {
	StatusCode int
	Body       string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("telemetry sink responded with %d: %s", e.StatusCode, e.Body)
}

// Sink receives telemetry samples.
type Sink interface {
	Send(ctx context.Context, s Sample) error
	Close() error
}

// defaultTimeout bounds each outbound delivery when no timeout is configured.
const defaultTimeout = 5 * time.Second

// Sink types accepted by NewSink.
const (
	SinkHTTP      = "http"
	SinkInflux    = "influx"
	SinkWebsocket = "websocket"
)

// Encoding formats for HTTP sinks.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewSink builds the sink selected by cfg.Type. The influx sink reads its
// connection settings from influx.
func NewSink(ctx context.Context, cfg config.SinkConfig, influx config.InfluxConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Type {
	case SinkHTTP, "":
		return NewHTTPSink(cfg.URL, cfg.Format, cfg.Timeout)
	case SinkInflux:
		return NewInfluxSink(ctx, influx, cfg.Timeout, logger)
	case SinkWebsocket:
		return NewWebsocketSink(cfg.URL, cfg.Timeout, logger), nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}
