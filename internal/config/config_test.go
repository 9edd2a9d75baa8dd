package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(body), 0644))
	return dir
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{
		"logLevel": "debug",
		"sink": { "url": "http://10.0.0.5:3001/api/telemetry", "format": "json" },
		"transport": { "device": "/dev/ttyAMA0", "baud": 115200 }
	}`)

	err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "debug", viper.GetString("logLevel"))
	assert.Equal(t, "http://10.0.0.5:3001/api/telemetry", Sink().URL)
	assert.Equal(t, "json", Sink().Format)
	assert.Equal(t, "/dev/ttyAMA0", Transport().Device)
	assert.Equal(t, 115200, Transport().Baud)
}

func TestLoad_DefaultValues(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{}`)
	require.NoError(t, Load(dir))

	assert.Equal(t, "info", viper.GetString("logLevel"))
	assert.Equal(t, "./boatlogs", viper.GetString("logsDir"))
	assert.Equal(t, false, viper.GetBool("graylog.enabled"))
	assert.Equal(t, "localhost:12201", viper.GetString("graylog.address"))

	sink := Sink()
	assert.Equal(t, "http", sink.Type)
	assert.Equal(t, "http://localhost:3001/api/telemetry", sink.URL)
	assert.Equal(t, "text", sink.Format)
	assert.Equal(t, 5*time.Second, sink.Timeout)

	gw := Gateway()
	assert.Equal(t, ":5000", gw.Listen)
	assert.Equal(t, int64(65536), gw.MaxBodyBytes)

	tr := Transport()
	assert.True(t, tr.Enabled)
	assert.Equal(t, "/dev/ttyS0", tr.Device)
	assert.Equal(t, 9600, tr.Baud)
	assert.Equal(t, "", tr.Terminator)

	inf := Influx()
	assert.Equal(t, "http://localhost:8086", inf.URL())
	assert.Equal(t, "boat_telemetry", inf.Bucket)

	otelCfg := GetOTelConfig()
	assert.False(t, otelCfg.Enabled)
	assert.Equal(t, "boatlink", otelCfg.ServiceName)
	assert.Equal(t, 5*time.Second, otelCfg.BatchTimeout)
	assert.True(t, otelCfg.Insecure)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	err := Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
	assert.True(t, IsNotFound(err))

	// defaults are still registered
	assert.Equal(t, "/dev/ttyS0", Transport().Device)
}

func TestLoad_MalformedFile(t *testing.T) {
	t.Cleanup(viper.Reset)

	dir := writeConfig(t, `{ "logLevel": `)
	err := Load(dir)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	t.Cleanup(viper.Reset)
	t.Setenv("BOATLINK_GATEWAY_LISTEN", ":7000")

	require.NoError(t, Load(writeConfig(t, `{}`)))
	assert.Equal(t, ":7000", Gateway().Listen)
}

func TestSimulator_Defaults(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{}`)))

	cfg, err := Simulator()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.TickInterval)
	assert.Equal(t, time.Second, cfg.RoundInterval)
	assert.Equal(t, 5*time.Second, cfg.Backoff)
	assert.InDelta(t, 0.00001, cfg.StepSize, 1e-12)
	assert.Equal(t, 1450, cfg.ThrustMin)
	assert.Equal(t, 1550, cfg.ThrustMax)
	assert.Equal(t, uint64(0), cfg.Seed)
	assert.Equal(t, DefaultBoats, cfg.Boats)
}

func TestSimulator_RosterFromFile(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{
		"fleet": { "boats": [
			{ "id": "A1", "lat": 10.5, "lon": 106.7, "heading": 90, "leftThrust": 1510, "rightThrust": 1490 },
			{ "id": "A2", "lat": 10.6, "lon": 106.8 }
		] }
	}`)))

	cfg, err := Simulator()
	require.NoError(t, err)
	require.Len(t, cfg.Boats, 2)
	assert.Equal(t, BoatConfig{ID: "A1", Lat: 10.5, Lon: 106.7, Heading: 90, LeftThrust: 1510, RightThrust: 1490}, cfg.Boats[0])
	assert.Equal(t, "A2", cfg.Boats[1].ID)
	assert.Equal(t, 0, cfg.Boats[1].LeftThrust)
}

func TestSimulator_RejectsInvertedThrustRange(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "simulator": { "thrustMin": 1600, "thrustMax": 1500 } }`)))

	_, err := Simulator()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "thrustMin")
}

func TestSimulator_RejectsNonPositiveStep(t *testing.T) {
	t.Cleanup(viper.Reset)
	require.NoError(t, Load(writeConfig(t, `{ "simulator": { "stepSize": 0 } }`)))

	_, err := Simulator()
	require.Error(t, err)
}
