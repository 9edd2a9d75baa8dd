// Command command_gateway accepts steering commands over HTTP and relays
// them to the boats through the serial LoRa radio.
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
	"github.com/usvlab/boatlink/internal/gateway"
	"github.com/usvlab/boatlink/internal/journal"
	"github.com/usvlab/boatlink/internal/transport"
)

const component = "command_gateway"

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
	flagSet.String("listen", "", "HTTP listen address, e.g. :5000")
	flagSet.String("device", "", "serial device of the LoRa module")
	flagSet.Int("baud", 0, "serial baud rate")
	flagSet.Bool("no-radio", false, "never open the serial port, log commands instead")
	flagSet.String("journal", "", "append a JSON line per relayed command to this file")
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
		"gateway.listen":        "listen",
		"transport.device":      "device",
		"transport.baud":        "baud",
		"transport.journalPath": "journal",
	}); err != nil {
		return err
	}

	tcfg := config.Transport()
	if noRadio, _ := flagSet.GetBool("no-radio"); noRadio {
		tcfg.Enabled = false
	}
	radio := transport.Open(tcfg, env.Slog.Component("transport"))
	defer radio.Close()

	jrnl, err := journal.Open(tcfg.JournalPath)
	if err != nil {
		return fmt.Errorf("opening command journal: %w", err)
	}
	defer jrnl.Close()
	if tcfg.JournalPath != "" {
		logger.Info("Journaling commands", "path", tcfg.JournalPath)
	}

	metrics, err := gateway.NewCollector(nil)
	if err != nil {
		return fmt.Errorf("registering metrics: %w", err)
	}

	relay := gateway.NewRelay(radio, jrnl, metrics, env.Slog.Component("relay"))
	srv := gateway.NewServer(relay, metrics, config.Gateway(), env.Slog.Component("http"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down gateway")
		if err := srv.Shutdown(context.Background()); err != nil {
			return err
		}
		return <-errCh
	}
}
