package telemetry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sample = Sample{
	BoatID:      "00001",
	Lat:         21.038744,
	Lon:         105.782466,
	Head:        45,
	TargetHead:  52,
	LeftThrust:  1503,
	RightThrust: 1497,
	PID:         1.27,
	Seq:         9,
}

func TestEncodeText(t *testing.T) {
	assert.Equal(t, "00001,21.038744,105.782466,45,52,1503,1497,1.27", EncodeText(sample))
}

func TestEncodeText_PadsPrecision(t *testing.T) {
	s := Sample{BoatID: "b", Lat: 21, Lon: -0.5, Head: 0, TargetHead: 359, LeftThrust: 1450, RightThrust: 1550, PID: 2}
	assert.Equal(t, "b,21.000000,-0.500000,0,359,1450,1550,2.00", EncodeText(s))
}

func TestTextRoundTrip(t *testing.T) {
	got, err := ParseText(EncodeText(sample))
	require.NoError(t, err)

	want := sample
	want.Seq = 0
	assert.Equal(t, want, got)
}

func TestParseText_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"too few fields", "00001,21.0,105.0,45"},
		{"too many fields", "00001,21.0,105.0,45,50,1500,1500,1.0,extra"},
		{"empty id", ",21.0,105.0,45,50,1500,1500,1.0"},
		{"bad lat", "00001,north,105.0,45,50,1500,1500,1.0"},
		{"bad head", "00001,21.0,105.0,4.5,50,1500,1500,1.0"},
		{"bad pid", "00001,21.0,105.0,45,50,1500,1500,x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(tt.line)
			assert.Error(t, err)
		})
	}
}

func TestEncodeJSON_FieldNames(t *testing.T) {
	data, err := EncodeJSON(sample)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "00001", m["boatId"])
	assert.Equal(t, 1503.0, m["leftSpeed"])
	assert.Equal(t, 1497.0, m["rightSpeed"])
	assert.Equal(t, 52.0, m["targetHead"])
	assert.NotContains(t, m, "pid")
	assert.NotContains(t, m, "seq")
}

func TestJSONRoundTrip(t *testing.T) {
	data, err := EncodeJSON(sample)
	require.NoError(t, err)

	got, err := ParseJSON(data)
	require.NoError(t, err)

	want := sample
	want.Seq = 0
	want.PID = 0
	assert.Equal(t, want, got)
}

func TestParseJSON_Errors(t *testing.T) {
	_, err := ParseJSON([]byte(`{"lat":1}`))
	assert.Error(t, err)

	_, err = ParseJSON([]byte(`not json`))
	assert.Error(t, err)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 21.038737, Round(21.03873701, 6))
	assert.Equal(t, 1.28, Round(1.2751, 2))
	assert.Equal(t, -0.5, Round(-0.5, 6))
}
