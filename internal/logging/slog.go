package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// swapped in tests to capture console output
var (
	osStdout io.Writer = os.Stdout
	osPipe             = os.Pipe
)

// SlogManager manages slog-based logging with optional Graylog and OTel output.
type SlogManager struct {
	logger *slog.Logger
	name   string

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider

	graylog *gelf.Writer

	// Context, when set, adds dynamic attributes (round number, transport
	// mode) to every record.
	Context ContextProvider
}

// NewSlogManager creates a new slog-based logging manager. name is used as
// the OTel instrumentation scope and the Graylog facility.
func NewSlogManager(name string) *SlogManager {
	return &SlogManager{name: name}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ConnectGraylog opens a GELF UDP writer to address. Records go to Graylog
// from the next Setup call on.
func (m *SlogManager) ConnectGraylog(address string) error {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return fmt.Errorf("connecting to graylog at %s: %w", address, err)
	}
	w.Facility = m.name
	m.graylog = w
	return nil
}

// Setup initializes the logging system. Console output is used only when
// file is nil. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider) {
	lvl := parseLevel(level)
	m.logProvider = provider

	handlerOpts := &slog.HandlerOptions{
		Level: lvl,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler

	if file != nil {
		handlers = append(handlers, slog.NewTextHandler(file, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(osStdout, handlerOpts))
	}

	if m.graylog != nil {
		handlers = append(handlers, slog.NewJSONHandler(m.graylog, handlerOpts))
	}

	if provider != nil {
		handlers = append(handlers, otelslog.NewHandler(m.name, otelslog.WithLoggerProvider(provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if m.Context != nil {
		handler = NewContextHandler(handler, m.Context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", lvl.String(), "graylog", m.graylog != nil, "otel", provider != nil)
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Component returns a child logger tagged with the component name.
func (m *SlogManager) Component(name string) *slog.Logger {
	return m.Logger().With("component", name)
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}

// Close flushes OTel logs and releases the Graylog connection.
func (m *SlogManager) Close(ctx context.Context) error {
	var errs []error
	if err := m.Flush(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flushing otel logs: %w", err))
	}
	if m.graylog != nil {
		if err := m.graylog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing graylog writer: %w", err))
		}
		m.graylog = nil
	}
	return errors.Join(errs...)
}
