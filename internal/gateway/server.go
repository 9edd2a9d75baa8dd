package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/usvlab/boatlink/internal/command"
	"github.com/usvlab/boatlink/internal/config"
)

const (
	readTimeout     = 5 * time.Second
	writeTimeout    = 5 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 10 * time.Second

	defaultMaxBody = 64 * 1024

	acceptedMessage = "Command sent to LoRa module"
)

// Error codes in error responses.
const (
	CodeMissingField     = string(command.KindMissingField)
	CodeMalformedPayload = string(command.KindMalformedPayload)
	CodeTransportFailure = "TRANSPORT_FAILURE"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
)

// Response is the JSON body of every /command reply.
type Response struct {
	Status    string `json:"status"`
	ID        string `json:"id,omitempty"`
	BoatID    string `json:"boatId,omitempty"`
	Shape     string `json:"shape,omitempty"`
	Transport string `json:"transport,omitempty"`
	Code      string `json:"code,omitempty"`
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
}

// Server is the gateway's HTTP surface.
type Server struct {
	relay      *Relay
	metrics    *Collector
	logger     *slog.Logger
	maxBody    int64
	httpServer *http.Server
}

// NewServer creates the HTTP server. metrics may be nil.
func NewServer(relay *Relay, metrics *Collector, cfg config.GatewayConfig, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	s := &Server{relay: relay, metrics: metrics, logger: logger, maxBody: maxBody}
	s.httpServer = &http.Server{
		Addr:         cfg.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/command", s.timed(s.handleCommand))
	mux.HandleFunc("/healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe blocks until the server stops. A clean shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info("Gateway listening", "addr", s.httpServer.Addr, "transport", s.relay.Mode())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, Response{
			Status: "error", Code: CodeMethodNotAllowed, Message: "Only POST method is allowed",
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		msg := "could not read request body"
		if errors.As(err, &tooLarge) {
			msg = fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit)
		}
		s.metrics.command("invalid", "rejected")
		writeJSON(w, http.StatusBadRequest, Response{Status: "error", Code: CodeMalformedPayload, Message: msg})
		return
	}

	ack, err := s.relay.Receive(r.Context(), r.Header.Get("Content-Type"), body)
	if err != nil {
		var ve *command.ValidationError
		switch {
		case errors.As(err, &ve):
			writeJSON(w, http.StatusBadRequest, Response{
				Status: "error", Code: string(ve.Kind), Field: ve.Field, Message: ve.Error(),
			})
		case errors.Is(err, ErrTransportFailure):
			writeJSON(w, http.StatusInternalServerError, Response{
				Status: "error", Code: CodeTransportFailure, Message: "Failed to send command via LoRa",
			})
		default:
			writeJSON(w, http.StatusInternalServerError, Response{Status: "error", Message: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, Response{
		Status:    "accepted",
		ID:        ack.ID,
		BoatID:    ack.BoatID,
		Shape:     string(ack.Shape),
		Transport: ack.Transport,
		Message:   acceptedMessage,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeJSON(w, http.StatusMethodNotAllowed, Response{
			Status: "error", Code: CodeMethodNotAllowed, Message: "Only GET method is allowed",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "transport": s.relay.Mode()})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) timed(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		s.metrics.observe(rec.status, time.Since(start).Seconds())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
