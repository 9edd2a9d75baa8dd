package fleet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usvlab/boatlink/internal/config"
)

func TestNewRoster(t *testing.T) {
	roster, err := NewRoster([]config.BoatConfig{
		{ID: "00001", Lat: 21.0, Lon: 105.0, Heading: 370, LeftThrust: 1600, RightThrust: 1400},
		{ID: "00002", Lat: -10.5, Lon: -170, Heading: -90, LeftThrust: 1500, RightThrust: 1500},
	}, 1450, 1550)
	require.NoError(t, err)
	require.Len(t, roster, 2)

	assert.Equal(t, "00001", roster[0].ID)
	assert.Equal(t, 21.0, roster[0].Lat())
	assert.Equal(t, 105.0, roster[0].Lon())
	assert.InDelta(t, 10.0, roster[0].Heading, 1e-9)
	assert.Equal(t, 1550, roster[0].LeftThrust)
	assert.Equal(t, 1450, roster[0].RightThrust)
	assert.InDelta(t, 270.0, roster[1].Heading, 1e-9)
	assert.Zero(t, roster[1].Ticks)
}

func TestNewRoster_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		boats []config.BoatConfig
		min   int
		max   int
	}{
		{"empty", nil, 1450, 1550},
		{"empty id", []config.BoatConfig{{ID: ""}}, 1450, 1550},
		{"duplicate", []config.BoatConfig{{ID: "a"}, {ID: "a"}}, 1450, 1550},
		{"lat", []config.BoatConfig{{ID: "a", Lat: 91}}, 1450, 1550},
		{"lon", []config.BoatConfig{{ID: "a", Lon: -181}}, 1450, 1550},
		{"comma in id", []config.BoatConfig{{ID: "00,01"}}, 1450, 1550},
		{"control char in id", []config.BoatConfig{{ID: "0001\n"}}, 1450, 1550},
		{"inverted thrust", []config.BoatConfig{{ID: "a"}}, 1550, 1450},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoster(tt.boats, tt.min, tt.max)
			assert.Error(t, err)
		})
	}
}
