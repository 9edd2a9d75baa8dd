package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
)

const writeWait = 5 * time.Second

// Envelope is the message frame streamed to websocket consumers.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WebsocketSink streams JSON samples over a websocket. The connection is
// dialed lazily and redialed on the next send after any failure, including
// a close from the server.
type WebsocketSink struct {
	mu      sync.Mutex
	url     string
	timeout time.Duration
	conn    *ws.Conn
	dialer  *ws.Dialer
	logger  *slog.Logger
}

// NewWebsocketSink creates a sink for the ws:// or wss:// url.
func NewWebsocketSink(url string, timeout time.Duration, logger *slog.Logger) *WebsocketSink {
	if timeout <= 0 {
		timeout = writeWait
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebsocketSink{
		url:     url,
		timeout: timeout,
		dialer:  &ws.Dialer{HandshakeTimeout: timeout},
		logger:  logger,
	}
}

// Send writes one boat_telemetry envelope.
func (c *WebsocketSink) Send(ctx context.Context, s Sample) error {
	payload, err := EncodeJSON(s)
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}
	data, err := json.Marshal(Envelope{Type: Measurement, Payload: payload})
	if err != nil {
		return fmt.Errorf("encoding envelope: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w: websocket dial failed: %w", ErrUnreachable, err)
		}
		c.logger.Info("Websocket sink connected", "url", c.url)
		c.conn = conn
		go c.readLoop(conn)
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		c.drop()
		return fmt.Errorf("%w: %w", ErrUnreachable, err)
	}
	if err := c.conn.WriteMessage(ws.TextMessage, data); err != nil {
		c.logger.Warn("WebSocket write error", "error", err)
		c.drop()
		return fmt.Errorf("%w: websocket write failed: %w", ErrUnreachable, err)
	}
	return nil
}

// readLoop discards inbound frames so gorilla answers pings and sees the
// peer's close. When the read fails the connection is dropped and the next
// Send redials.
func (c *WebsocketSink) readLoop(conn *ws.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.conn == conn {
				c.logger.Warn("WebSocket read error", "error", err)
				c.drop()
			}
			return
		}
	}
}

// drop closes the current connection. Callers hold mu.
func (c *WebsocketSink) drop() {
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
}

// Close sends a close frame and closes the connection.
func (c *WebsocketSink) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(ws.CloseMessage,
		ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
