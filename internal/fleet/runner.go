package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/usvlab/boatlink/internal/config"
	"github.com/usvlab/boatlink/internal/telemetry"
)

// Runner ticks every boat in roster order and delivers the samples to a sink.
type Runner struct {
	sim    *Simulator
	sink   telemetry.Sink
	logger *slog.Logger

	tickInterval  time.Duration
	roundInterval time.Duration
	backoff       time.Duration

	// OTEL metrics
	ticks    metric.Int64Counter
	sends    metric.Int64Counter
	odometer metric.Float64ObservableGauge
}

// NewRunner wires sim to sink with the pacing from cfg.
// Uses the global OTel meter for metrics (no-op if not configured).
func NewRunner(sim *Simulator, sink telemetry.Sink, cfg config.SimulatorConfig, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		sim:           sim,
		sink:          sink,
		logger:        logger,
		tickInterval:  cfg.TickInterval,
		roundInterval: cfg.RoundInterval,
		backoff:       cfg.Backoff,
	}

	m := meter()
	var err error

	r.ticks, err = m.Int64Counter(
		"boatlink.simulator.ticks",
		metric.WithDescription("Kinematic steps applied per boat"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating ticks counter: %w", err)
	}

	r.sends, err = m.Int64Counter(
		"boatlink.simulator.sends",
		metric.WithDescription("Telemetry deliveries by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating sends counter: %w", err)
	}

	r.odometer, err = m.Float64ObservableGauge(
		"boatlink.simulator.odometer",
		metric.WithDescription("Distance travelled per boat"),
		metric.WithUnit("m"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating odometer gauge: %w", err)
	}

	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			for _, id := range sim.IDs() {
				if b, ok := sim.Snapshot(id); ok {
					o.ObserveFloat64(r.odometer, b.Odometer,
						metric.WithAttributes(attribute.String("boatId", id)))
				}
			}
			return nil
		},
		r.odometer,
	)
	if err != nil {
		return nil, fmt.Errorf("registering odometer callback: %w", err)
	}

	return r, nil
}

// Run loops until ctx is canceled, then returns nil. A sink that cannot be
// reached aborts the current round; the runner waits out the backoff and
// starts over from the first boat.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("Starting telemetry transmission",
		"boats", len(r.sim.IDs()),
		"tickInterval", r.tickInterval,
		"roundInterval", r.roundInterval)

	for round := 1; ; round++ {
		sent, err := r.round(ctx)
		if ctx.Err() != nil {
			r.logger.Info("Simulation stopped", "rounds", round-1)
			return nil
		}

		if errors.Is(err, telemetry.ErrUnreachable) {
			r.logger.Warn("Connection error, retrying",
				"round", round, "backoff", r.backoff, "error", err)
			if !sleep(ctx, r.backoff) {
				r.logger.Info("Simulation stopped", "rounds", round)
				return nil
			}
			continue
		}

		r.logger.Debug("Round complete",
			"round", round,
			"delivered", sent,
			"odometer", fmt.Sprintf("%.1fm", r.sim.Odometer()))

		if !sleep(ctx, r.roundInterval) {
			r.logger.Info("Simulation stopped", "rounds", round)
			return nil
		}
	}
}

// round ticks every boat once. It stops early on cancellation or when the
// sink is unreachable and returns how many samples were delivered.
func (r *Runner) round(ctx context.Context) (int, error) {
	sent := 0
	for _, id := range r.sim.IDs() {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		sample, err := r.sim.Tick(id)
		if err != nil {
			r.logger.Error("Tick failed", "boatId", id, "error", err)
			continue
		}
		boatAttr := attribute.String("boatId", id)
		r.ticks.Add(ctx, 1, metric.WithAttributes(boatAttr))

		err = r.sink.Send(ctx, sample)
		switch {
		case err == nil:
			sent++
			r.sends.Add(ctx, 1, metric.WithAttributes(boatAttr, attribute.String("outcome", "ok")))
			r.logger.Debug("Sent", "sample", telemetry.EncodeText(sample))
		case ctx.Err() != nil:
			return sent, ctx.Err()
		case errors.Is(err, telemetry.ErrUnreachable):
			r.sends.Add(ctx, 1, metric.WithAttributes(boatAttr, attribute.String("outcome", "unreachable")))
			return sent, err
		default:
			r.sends.Add(ctx, 1, metric.WithAttributes(boatAttr, attribute.String("outcome", "failed")))
			var de *telemetry.DeliveryError
			if errors.As(err, &de) {
				r.logger.Warn("Sink rejected sample",
					"boatId", id, "status", de.StatusCode, "body", de.Body,
					"sample", telemetry.EncodeText(sample))
			} else {
				r.logger.Error("Send failed", "boatId", id, "error", err)
			}
		}

		if !sleep(ctx, r.tickInterval) {
			return sent, ctx.Err()
		}
	}
	return sent, nil
}

// sleep waits for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
