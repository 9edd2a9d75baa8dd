package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON file Load looks for in the config directory.
const ConfigFileName = "boatlink.cfg.json"

// EnvPrefix is prepended to every environment override, e.g. BOATLINK_SINK_URL.
const EnvPrefix = "BOATLINK"

// BoatConfig is one roster entry under fleet.boats.
type BoatConfig struct {
	ID          string  `json:"id" mapstructure:"id"`
	Lat         float64 `json:"lat" mapstructure:"lat"`
	Lon         float64 `json:"lon" mapstructure:"lon"`
	Heading     float64 `json:"heading" mapstructure:"heading"`
	LeftThrust  int     `json:"leftThrust" mapstructure:"leftThrust"`
	RightThrust int     `json:"rightThrust" mapstructure:"rightThrust"`
}

// SimulatorConfig holds the kinematic and pacing settings of the fleet simulator.
type SimulatorConfig struct {
	TickInterval  time.Duration
	RoundInterval time.Duration
	Backoff       time.Duration
	StepSize      float64
	ThrustMin     int
	ThrustMax     int
	Seed          uint64
	Boats         []BoatConfig
}

// SinkConfig selects where telemetry samples are delivered.
type SinkConfig struct {
	Type    string // http, influx or websocket
	URL     string
	Format  string // text or json
	Timeout time.Duration
}

// InfluxConfig holds InfluxDB sink settings.
type InfluxConfig struct {
	Protocol   string
	Host       string
	Port       string
	Token      string
	Org        string
	Bucket     string
	BackupPath string
}

// URL returns the server URL built from protocol, host and port.
func (c InfluxConfig) URL() string {
	return fmt.Sprintf("%s://%s:%s", c.Protocol, c.Host, c.Port)
}

// GatewayConfig holds the command intake HTTP settings.
type GatewayConfig struct {
	Listen       string
	MaxBodyBytes int64
}

// TransportConfig describes the serial radio link.
type TransportConfig struct {
	Enabled     bool
	Device      string
	Baud        int
	Terminator  string
	JournalPath string
}

// LoggingConfig holds log level, file location and Graylog output.
type LoggingConfig struct {
	Level          string
	LogsDir        string
	GraylogEnabled bool
	GraylogAddress string
}

// OTelConfig holds OpenTelemetry settings.
type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// DefaultBoats is the roster used when fleet.boats is not configured.
var DefaultBoats = []BoatConfig{
	{ID: "00001", Lat: 21.03873701, Lon: 105.78245842, Heading: 45, LeftThrust: 1500, RightThrust: 1500},
	{ID: "00002", Lat: 21.03900000, Lon: 105.78200000, Heading: 120, LeftThrust: 1500, RightThrust: 1500},
	{ID: "00003", Lat: 21.03850000, Lon: 105.78290000, Heading: 270, LeftThrust: 1500, RightThrust: 1500},
	{ID: "00004", Lat: 21.03950000, Lon: 105.78290000, Heading: 270, LeftThrust: 1500, RightThrust: 1500},
}

// SetDefaults registers every default value with viper.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./boatlogs")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "boatlink")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("sink.type", "http")
	viper.SetDefault("sink.url", "http://localhost:3001/api/telemetry")
	viper.SetDefault("sink.format", "text")
	viper.SetDefault("sink.timeout", "5s")

	viper.SetDefault("simulator.tickInterval", "500ms")
	viper.SetDefault("simulator.roundInterval", "1s")
	viper.SetDefault("simulator.backoff", "5s")
	viper.SetDefault("simulator.stepSize", 0.00001)
	viper.SetDefault("simulator.thrustMin", 1450)
	viper.SetDefault("simulator.thrustMax", 1550)
	viper.SetDefault("simulator.seed", 0)

	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "boatlink")
	viper.SetDefault("influx.bucket", "boat_telemetry")
	viper.SetDefault("influx.backupPath", "./boatlogs/influx_backup.lp.gz")

	viper.SetDefault("gateway.listen", ":5000")
	viper.SetDefault("gateway.maxBodyBytes", 64*1024)

	viper.SetDefault("transport.enabled", true)
	viper.SetDefault("transport.device", "/dev/ttyS0")
	viper.SetDefault("transport.baud", 9600)
	viper.SetDefault("transport.terminator", "")
	viper.SetDefault("transport.journalPath", "")
}

// Load sets default values, binds BOATLINK_* environment overrides and reads
// the JSON config file from configDir. Defaults and environment stay in effect
// when the file is missing; the returned error tells the caller so.
func Load(configDir string) error {
	SetDefaults()

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}

	return nil
}

// IsNotFound reports whether err from Load only means the file was absent.
func IsNotFound(err error) bool {
	var notFound viper.ConfigFileNotFoundError
	return errors.As(err, &notFound)
}

// Simulator returns the fleet simulator settings, including the roster.
func Simulator() (SimulatorConfig, error) {
	cfg := SimulatorConfig{
		TickInterval:  viper.GetDuration("simulator.tickInterval"),
		RoundInterval: viper.GetDuration("simulator.roundInterval"),
		Backoff:       viper.GetDuration("simulator.backoff"),
		StepSize:      viper.GetFloat64("simulator.stepSize"),
		ThrustMin:     viper.GetInt("simulator.thrustMin"),
		ThrustMax:     viper.GetInt("simulator.thrustMax"),
		Seed:          viper.GetUint64("simulator.seed"),
	}

	if viper.IsSet("fleet.boats") {
		if err := viper.UnmarshalKey("fleet.boats", &cfg.Boats); err != nil {
			return SimulatorConfig{}, fmt.Errorf("decoding fleet.boats: %w", err)
		}
	} else {
		cfg.Boats = append([]BoatConfig(nil), DefaultBoats...)
	}

	if cfg.ThrustMin > cfg.ThrustMax {
		return SimulatorConfig{}, fmt.Errorf("simulator.thrustMin %d exceeds simulator.thrustMax %d", cfg.ThrustMin, cfg.ThrustMax)
	}
	if cfg.StepSize <= 0 {
		return SimulatorConfig{}, fmt.Errorf("simulator.stepSize must be positive, got %v", cfg.StepSize)
	}

	return cfg, nil
}

// Sink returns the telemetry sink settings.
func Sink() SinkConfig {
	return SinkConfig{
		Type:    strings.ToLower(viper.GetString("sink.type")),
		URL:     viper.GetString("sink.url"),
		Format:  strings.ToLower(viper.GetString("sink.format")),
		Timeout: viper.GetDuration("sink.timeout"),
	}
}

// Influx returns the InfluxDB sink settings.
func Influx() InfluxConfig {
	return InfluxConfig{
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

// Gateway returns the command intake settings.
func Gateway() GatewayConfig {
	return GatewayConfig{
		Listen:       viper.GetString("gateway.listen"),
		MaxBodyBytes: viper.GetInt64("gateway.maxBodyBytes"),
	}
}

// Transport returns the radio link settings.
func Transport() TransportConfig {
	return TransportConfig{
		Enabled:     viper.GetBool("transport.enabled"),
		Device:      viper.GetString("transport.device"),
		Baud:        viper.GetInt("transport.baud"),
		Terminator:  viper.GetString("transport.terminator"),
		JournalPath: viper.GetString("transport.journalPath"),
	}
}

// Logging returns the log settings.
func Logging() LoggingConfig {
	return LoggingConfig{
		Level:          viper.GetString("logLevel"),
		LogsDir:        viper.GetString("logsDir"),
		GraylogEnabled: viper.GetBool("graylog.enabled"),
		GraylogAddress: viper.GetString("graylog.address"),
	}
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
