package fleet

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/paulmach/orb"

	"github.com/usvlab/boatlink/internal/config"
)

// BoatState is the kinematic state of one simulated boat.
type BoatState struct {
	ID          string
	Position    orb.Point // lon, lat
	Heading     float64   // degrees, [0, 360)
	LeftThrust  int
	RightThrust int
	Ticks       uint64
	Odometer    float64 // metres
}

// Lat returns the boat's latitude.
func (b BoatState) Lat() float64 { return b.Position.Lat() }

// Lon returns the boat's longitude.
func (b BoatState) Lon() float64 { return b.Position.Lon() }

// NormalizeHeading maps any angle into [0, 360).
func NormalizeHeading(h float64) float64 {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	// -tiny + 360 rounds to 360
	if h >= 360 {
		h = 0
	}
	return h
}

// ReportedHeading rounds a heading to whole degrees, so 359.6 reports as 0.
func ReportedHeading(h float64) int {
	return int(math.Round(NormalizeHeading(h))) % 360
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}

// badIDRune reports runes that would break the comma-delimited telemetry line.
func badIDRune(r rune) bool {
	return r == ',' || unicode.IsControl(r)
}

// NewRoster validates the configured boats and returns their initial state.
// Thrusts are clamped into [thrustMin, thrustMax] and headings normalized.
func NewRoster(boats []config.BoatConfig, thrustMin, thrustMax int) ([]BoatState, error) {
	if len(boats) == 0 {
		return nil, fmt.Errorf("roster is empty")
	}
	if thrustMin > thrustMax {
		return nil, fmt.Errorf("thrust range [%d, %d] is inverted", thrustMin, thrustMax)
	}

	seen := make(map[string]bool, len(boats))
	out := make([]BoatState, 0, len(boats))
	for i, b := range boats {
		switch {
		case b.ID == "":
			return nil, fmt.Errorf("boat %d has an empty id", i)
		case seen[b.ID]:
			return nil, fmt.Errorf("duplicate boat id %q", b.ID)
		case strings.ContainsFunc(b.ID, badIDRune):
			return nil, fmt.Errorf("boat id %q contains a comma or control character", b.ID)
		case b.Lat < -90 || b.Lat > 90:
			return nil, fmt.Errorf("boat %s latitude %v out of range", b.ID, b.Lat)
		case b.Lon < -180 || b.Lon > 180:
			return nil, fmt.Errorf("boat %s longitude %v out of range", b.ID, b.Lon)
		}
		seen[b.ID] = true

		out = append(out, BoatState{
			ID:          b.ID,
			Position:    orb.Point{b.Lon, b.Lat},
			Heading:     NormalizeHeading(b.Heading),
			LeftThrust:  clamp(b.LeftThrust, thrustMin, thrustMax),
			RightThrust: clamp(b.RightThrust, thrustMin, thrustMax),
		})
	}
	return out, nil
}
