// Package bootstrap performs the startup shared by the boatlink binaries:
// flags, configuration, log file, OpenTelemetry and Graylog.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/usvlab/boatlink/internal/config"
	"github.com/usvlab/boatlink/internal/logging"
	intOtel "github.com/usvlab/boatlink/internal/otel"
)

// Env is what a binary needs after startup.
type Env struct {
	Slog    *logging.SlogManager
	Logger  *slog.Logger
	OTel    *intOtel.Provider
	LogPath string

	logFile *os.File
}

// AddCommonFlags registers the flags every binary accepts.
func AddCommonFlags(fs *pflag.FlagSet) {
	fs.String("config-dir", ".", "directory containing "+config.ConfigFileName)
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.String("logs-dir", "", "directory for log files")
	fs.Bool("console", false, "log to stdout instead of a file")
}

// BindFlags maps viper keys to flag names. Flags only override the config
// file and environment when they were set on the command line.
func BindFlags(fs *pflag.FlagSet, keys map[string]string) error {
	for key, name := range keys {
		f := fs.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q for %s", name, key)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

// Start loads configuration and sets up logging for component. Flags must be
// parsed already. The returned Env must be closed.
func Start(component string, fs *pflag.FlagSet, sessionStart time.Time) (*Env, error) {
	configDir, _ := fs.GetString("config-dir")
	loadErr := config.Load(configDir)
	if loadErr != nil && !config.IsNotFound(loadErr) {
		return nil, loadErr
	}

	if err := BindFlags(fs, map[string]string{
		"logLevel": "log-level",
		"logsDir":  "logs-dir",
	}); err != nil {
		return nil, err
	}
	logCfg := config.Logging()

	env := &Env{Slog: logging.NewSlogManager(component)}
	env.Slog.Context = logging.FromContext
	env.Slog.Setup(nil, logCfg.Level, nil)
	env.Logger = env.Slog.Logger()

	if loadErr != nil {
		env.Logger.Warn("Failed to load config, using defaults!", "error", loadErr)
	} else {
		env.Logger.Info("Loaded config", "file", viper.ConfigFileUsed())
	}

	if console, _ := fs.GetBool("console"); !console {
		f, path, err := logging.OpenLogFile(logCfg.LogsDir, component, sessionStart)
		if err != nil {
			env.Logger.Error("Failed to create/open log file!", "error", err, "path", path)
		} else {
			env.logFile, env.LogPath = f, path
			env.Logger.Info("Begin logging in logs directory", "path", path)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		var err error
		env.OTel, err = intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName + "." + component,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    env.logWriter(),
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			env.Logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			env.Logger.Info("OTel provider initialized", "file", env.LogPath, "endpoint", otelCfg.Endpoint)
		}
	}

	if logCfg.GraylogEnabled {
		if err := env.Slog.ConnectGraylog(logCfg.GraylogAddress); err != nil {
			env.Logger.Warn("Failed to connect to Graylog", "address", logCfg.GraylogAddress, "error", err)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if env.OTel != nil {
		otelLogProvider = env.OTel.LoggerProvider()
	}
	env.Slog.Setup(env.logWriterOrNil(), logCfg.Level, otelLogProvider)
	env.Logger = env.Slog.Logger()
	return env, nil
}

func (e *Env) logWriter() io.Writer {
	if e.logFile == nil {
		return os.Stdout
	}
	return e.logFile
}

// logWriterOrNil keeps a nil *os.File from becoming a non-nil io.Writer.
func (e *Env) logWriterOrNil() io.Writer {
	if e.logFile == nil {
		return nil
	}
	return e.logFile
}

// Close flushes telemetry and closes log outputs.
func (e *Env) Close(ctx context.Context) error {
	var errs []error
	if err := e.Slog.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	if e.OTel != nil {
		if err := e.OTel.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := e.OTel.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if e.logFile != nil {
		errs = append(errs, e.logFile.Close())
	}
	return errors.Join(errs...)
}
