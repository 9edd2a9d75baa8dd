// Package fleet models the kinematics of a fleet of surface boats and drives
// the loop that reports their telemetry to a sink.
package fleet

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/usvlab/boatlink/internal/config"
	"github.com/usvlab/boatlink/internal/telemetry"
)

// ErrUnknownBoat is returned by Tick for an id that is not in the roster.
var ErrUnknownBoat = errors.New("unknown boat")

// Simulator owns the state of every boat in the roster.
type Simulator struct {
	mu        sync.Mutex
	boats     map[string]*BoatState
	order     []string
	noise     Noise
	stepSize  float64
	thrustMin int
	thrustMax int
}

// New builds a simulator from cfg. A nil noise uses NewNoise(cfg.Seed).
func New(cfg config.SimulatorConfig, noise Noise) (*Simulator, error) {
	if cfg.StepSize <= 0 {
		return nil, fmt.Errorf("step size must be positive, got %v", cfg.StepSize)
	}
	roster, err := NewRoster(cfg.Boats, cfg.ThrustMin, cfg.ThrustMax)
	if err != nil {
		return nil, fmt.Errorf("invalid roster: %w", err)
	}
	if noise == nil {
		noise = NewNoise(cfg.Seed)
	}

	s := &Simulator{
		boats:     make(map[string]*BoatState, len(roster)),
		order:     make([]string, 0, len(roster)),
		noise:     noise,
		stepSize:  cfg.StepSize,
		thrustMin: cfg.ThrustMin,
		thrustMax: cfg.ThrustMax,
	}
	for i := range roster {
		b := roster[i]
		s.boats[b.ID] = &b
		s.order = append(s.order, b.ID)
	}
	return s, nil
}

// IDs returns the boat ids in roster order.
func (s *Simulator) IDs() []string {
	return append([]string(nil), s.order...)
}

// Tick advances one boat by one step and returns the new snapshot.
func (s *Simulator) Tick(id string) (telemetry.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boats[id]
	if !ok {
		return telemetry.Sample{}, fmt.Errorf("%w: %q", ErrUnknownBoat, id)
	}

	b.Heading = NormalizeHeading(b.Heading + s.noise.Turn())

	b.LeftThrust = clamp(b.LeftThrust+s.noise.ThrustDelta(), s.thrustMin, s.thrustMax)
	b.RightThrust = clamp(b.RightThrust+s.noise.ThrustDelta(), s.thrustMin, s.thrustMax)

	prev := b.Position
	rad := b.Heading * math.Pi / 180
	lat := prev.Lat() + s.stepSize*math.Cos(rad)
	// longitude correction uses the updated latitude
	lon := prev.Lon() + s.stepSize*math.Sin(rad)/math.Cos(lat*math.Pi/180)
	b.Position = orb.Point{lon, lat}
	b.Odometer += geo.Distance(prev, b.Position)
	b.Ticks++

	target := NormalizeHeading(b.Heading + float64(s.noise.TargetOffset()))

	return telemetry.Sample{
		BoatID:      b.ID,
		Lat:         telemetry.Round(lat, 6),
		Lon:         telemetry.Round(lon, 6),
		Head:        ReportedHeading(b.Heading),
		TargetHead:  ReportedHeading(target),
		LeftThrust:  b.LeftThrust,
		RightThrust: b.RightThrust,
		PID:         telemetry.Round(s.noise.PID(), 2),
		Seq:         b.Ticks,
	}, nil
}

// Snapshot returns a copy of one boat's state.
func (s *Simulator) Snapshot(id string) (BoatState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.boats[id]
	if !ok {
		return BoatState{}, false
	}
	return *b, true
}

// Odometer returns the distance travelled by the whole fleet, in metres.
func (s *Simulator) Odometer() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total float64
	for _, b := range s.boats {
		total += b.Odometer
	}
	return total
}
