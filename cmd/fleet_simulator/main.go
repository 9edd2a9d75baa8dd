// Command fleet_simulator streams simulated boat telemetry to a sink.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/usvlab/boatlink/internal/bootstrap"
	"github.com/usvlab/boatlink/internal/config"
	"github.com/usvlab/boatlink/internal/fleet"
	"github.com/usvlab/boatlink/internal/telemetry"
)

const component = "fleet_simulator"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	sessionStart := time.Now()

	flagSet := pflag.NewFlagSet(component, pflag.ContinueOnError)
	bootstrap.AddCommonFlags(flagSet)
	flagSet.String("sink-type", "", "telemetry sink: http, influx or websocket")
	flagSet.String("sink-url", "", "telemetry endpoint URL")
	flagSet.String("sink-format", "", "sample encoding for the http sink: text or json")
	flagSet.Uint64("seed", 0, "noise seed, 0 picks a random one")
	flagSet.Duration("tick", 0, "delay between boats in a round")
	flagSet.BoolP("help", "h", false, "show this help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags]\n\n", component)
		flagSet.PrintDefaults()
		return nil
	}

	env, err := bootstrap.Start(component, flagSet, sessionStart)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.Close(ctx)
	}()
	logger := env.Logger

	if err := bootstrap.BindFlags(flagSet, map[string]string{
		"sink.type":              "sink-type",
		"sink.url":               "sink-url",
		"sink.format":            "sink-format",
		"simulator.seed":         "seed",
		"simulator.tickInterval": "tick",
	}); err != nil {
		return err
	}

	simCfg, err := config.Simulator()
	if err != nil {
		return err
	}
	sim, err := fleet.New(simCfg, nil)
	if err != nil {
		return fmt.Errorf("building fleet: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sinkCfg := config.Sink()
	sink, err := telemetry.NewSink(ctx, sinkCfg, config.Influx(), env.Slog.Component("sink"))
	if err != nil {
		return fmt.Errorf("creating %s sink: %w", sinkCfg.Type, err)
	}
	defer sink.Close()

	logger.Info("Fleet simulator starting",
		"boats", sim.IDs(),
		"sink", sinkCfg.Type,
		"url", sinkCfg.URL,
		"tickInterval", simCfg.TickInterval,
		"roundInterval", simCfg.RoundInterval)

	runner, err := fleet.NewRunner(sim, sink, simCfg, env.Slog.Component("runner"))
	if err != nil {
		return err
	}
	return runner.Run(ctx)
}
