// Package telemetry defines the boat telemetry snapshot, its two wire
// encodings, and the sinks the simulator delivers samples to.
package telemetry

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Sample is one boat's state at one tick. Values are already rounded to
// their wire precision: lat/lon to 6 decimals, pid to 2.
type Sample struct {
	BoatID      string
	Lat         float64
	Lon         float64
	Head        int
	TargetHead  int
	LeftThrust  int
	RightThrust int
	PID         float64
	Seq         uint64 // tick count of the boat, not sent on the wire
}

// Round returns v rounded to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// EncodeText renders boatId,lat,lon,head,targetHead,leftThrust,rightThrust,pid.
func EncodeText(s Sample) string {
	return fmt.Sprintf("%s,%.6f,%.6f,%d,%d,%d,%d,%.2f",
		s.BoatID, s.Lat, s.Lon, s.Head, s.TargetHead, s.LeftThrust, s.RightThrust, s.PID)
}

// ParseText is the inverse of EncodeText.
func ParseText(line string) (Sample, error) {
	parts := strings.Split(strings.TrimSpace(line), ",")
	if len(parts) != 8 {
		return Sample{}, fmt.Errorf("telemetry line has %d fields, want 8", len(parts))
	}
	if parts[0] == "" {
		return Sample{}, fmt.Errorf("telemetry line has empty boat id")
	}

	s := Sample{BoatID: parts[0]}
	var err error
	if s.Lat, err = strconv.ParseFloat(parts[1], 64); err != nil {
		return Sample{}, fmt.Errorf("lat: %w", err)
	}
	if s.Lon, err = strconv.ParseFloat(parts[2], 64); err != nil {
		return Sample{}, fmt.Errorf("lon: %w", err)
	}
	ints := []*int{&s.Head, &s.TargetHead, &s.LeftThrust, &s.RightThrust}
	names := []string{"head", "targetHead", "leftThrust", "rightThrust"}
	for i, dst := range ints {
		if *dst, err = strconv.Atoi(parts[3+i]); err != nil {
			return Sample{}, fmt.Errorf("%s: %w", names[i], err)
		}
	}
	if s.PID, err = strconv.ParseFloat(parts[7], 64); err != nil {
		return Sample{}, fmt.Errorf("pid: %w", err)
	}
	return s, nil
}

type jsonSample struct {
	BoatID     string  `json:"boatId"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Head       int     `json:"head"`
	TargetHead int     `json:"targetHead"`
	LeftSpeed  int     `json:"leftSpeed"`
	RightSpeed int     `json:"rightSpeed"`
}

// EncodeJSON renders the JSON form. It carries no pid.
func EncodeJSON(s Sample) ([]byte, error) {
	return json.Marshal(toJSON(s))
}

// ParseJSON is the inverse of EncodeJSON.
func ParseJSON(data []byte) (Sample, error) {
	var js jsonSample
	if err := json.Unmarshal(data, &js); err != nil {
		return Sample{}, fmt.Errorf("decoding telemetry: %w", err)
	}
	if js.BoatID == "" {
		return Sample{}, fmt.Errorf("telemetry object has empty boatId")
	}
	return Sample{
		BoatID:      js.BoatID,
		Lat:         js.Lat,
		Lon:         js.Lon,
		Head:        js.Head,
		TargetHead:  js.TargetHead,
		LeftThrust:  js.LeftSpeed,
		RightThrust: js.RightSpeed,
	}, nil
}

func toJSON(s Sample) jsonSample {
	return jsonSample{
		BoatID:     s.BoatID,
		Lat:        Round(s.Lat, 6),
		Lon:        Round(s.Lon, 6),
		Head:       s.Head,
		TargetHead: s.TargetHead,
		LeftSpeed:  s.LeftThrust,
		RightSpeed: s.RightThrust,
	}
}
