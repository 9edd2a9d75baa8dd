// Package gateway accepts steering commands over HTTP, normalizes them and
// hands them to the radio transport.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/usvlab/boatlink/internal/command"
	"github.com/usvlab/boatlink/internal/journal"
	"github.com/usvlab/boatlink/internal/logging"
	"github.com/usvlab/boatlink/internal/transport"
)

// ErrTransportFailure is returned when the radio write failed.
var ErrTransportFailure = errors.New("transport failure")

// Ack describes an accepted command.
type Ack struct {
	ID        string
	BoatID    string
	Shape     command.Shape
	Transport string
	Command   string
}

// Relay parses, transmits and acknowledges commands.
type Relay struct {
	transport transport.Transport
	journal   *journal.Journal
	metrics   *Collector
	logger    *slog.Logger
}

// NewRelay wires a relay. A nil journal or metrics collector disables them.
func NewRelay(t transport.Transport, j *journal.Journal, m *Collector, logger *slog.Logger) *Relay {
	if j == nil {
		j = journal.Nop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{transport: t, journal: j, metrics: m, logger: logger}
}

// Receive handles one inbound payload. Validation failures are returned as
// *command.ValidationError and nothing is transmitted.
func (r *Relay) Receive(ctx context.Context, contentType string, body []byte) (Ack, error) {
	rec, err := command.Parse(contentType, body)
	if err != nil {
		r.metrics.command("invalid", "rejected")
		r.logger.WarnContext(ctx, "Rejected command", "error", err)
		return Ack{}, err
	}

	ctx = logging.ContextWith(ctx,
		slog.String("commandId", rec.ID.String()),
		slog.String("boatId", rec.BoatID))
	r.logger.InfoContext(ctx, "Received command", "shape", rec.Shape, "command", rec.Command)
	if rec.DefaultedGains {
		r.logger.WarnContext(ctx, "Command has no kp/ki/kd, sending zero gains")
	}

	mode := r.transport.Mode()
	entry := journal.Entry{
		CommandID: rec.ID.String(),
		BoatID:    rec.BoatID,
		Shape:     string(rec.Shape),
		Mode:      mode,
		Command:   rec.Command,
	}

	if err := r.transport.Transmit(rec.Command); err != nil {
		entry.Outcome, entry.Err = journal.OutcomeFailed, err
		r.journal.Record(entry)
		r.metrics.transportWrite(mode, "failed")
		r.metrics.command(string(rec.Shape), "failed")
		r.logger.ErrorContext(ctx, "Failed to send command via radio", "error", err)
		return Ack{}, fmt.Errorf("%w: %w", ErrTransportFailure, err)
	}

	entry.Outcome = journal.OutcomeSent
	if mode == transport.ModeSimulated {
		entry.Outcome = journal.OutcomeSimulated
	}
	r.journal.Record(entry)
	r.metrics.transportWrite(mode, "ok")
	r.metrics.command(string(rec.Shape), "accepted")

	return Ack{
		ID:        rec.ID.String(),
		BoatID:    rec.BoatID,
		Shape:     rec.Shape,
		Transport: mode,
		Command:   rec.Command,
	}, nil
}

// Mode reports the transport in use.
func (r *Relay) Mode() string {
	return r.transport.Mode()
}
