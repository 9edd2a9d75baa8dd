// Package command turns the payloads accepted by the gateway into the single
// comma-separated command string the boats understand:
//
//	boatId,speed,targetLat,targetLon,kp,ki,kd
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime"
	"strconv"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Shape names the inbound payload form a Record was built from.
type Shape string

const (
	ShapeFields  Shape = "fields"
	ShapeWrapped Shape = "wrapped"
	ShapeRaw     Shape = "raw"
)

// Record is a validated command ready for the transport.
type Record struct {
	ID      uuid.UUID
	BoatID  string
	Command string
	Shape   Shape
	// DefaultedGains is set when kp, ki and kd were all absent and sent as 0.
	DefaultedGains bool
}

// Defaults for structured-field payloads.
const (
	DefaultSpeed = "1500"
	DefaultGain  = "0"
	DefaultCoord = "0"
)

// payload is the request as seen by every shape parser.
type payload struct {
	body   []byte
	object map[string]any // nil unless the body is a JSON object
}

// shapeParser either declines (ok false), or returns a record or an error.
type shapeParser func(p payload) (rec Record, ok bool, err error)

// parsers are tried in order; the first one that does not decline wins.
var parsers = []shapeParser{parseFields, parseWrapped, parseRaw}

// Parse validates body and normalizes it into a Record. contentType may be
// empty, in which case a body starting with '{' is treated as JSON.
func Parse(contentType string, body []byte) (Record, error) {
	p, err := classify(contentType, body)
	if err != nil {
		return Record{}, err
	}

	for _, parse := range parsers {
		rec, ok, err := parse(p)
		if err != nil {
			return Record{}, err
		}
		if ok {
			rec.ID = uuid.New()
			return rec, nil
		}
	}
	return Record{}, malformed("", "payload matches no accepted shape")
}

func classify(contentType string, body []byte) (payload, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return payload{}, malformed("", "request body is empty")
	}

	var mediaType string
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return payload{}, malformed("Content-Type", "invalid content type %q", contentType)
		}
		mediaType = mt
	}

	isJSON := mediaType == "application/json" || strings.HasSuffix(mediaType, "+json") ||
		(mediaType == "" && trimmed[0] == '{')
	if !isJSON && mediaType != "" && mediaType != "text/plain" {
		return payload{}, malformed("Content-Type", "unsupported content type %q", mediaType)
	}

	p := payload{body: trimmed}
	if !isJSON {
		return p, nil
	}

	obj, err := decodeObject(trimmed)
	if err != nil {
		return payload{}, err
	}
	p.object = obj
	return p, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, malformed("", "invalid JSON: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("", "unexpected data after JSON object")
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, malformed("", "JSON body must be an object")
	}
	return obj, nil
}

func parseFields(p payload) (Record, bool, error) {
	if p.object == nil {
		return Record{}, false, nil
	}
	if _, wrapped := p.object["command"]; wrapped {
		return Record{}, false, nil
	}

	boatID, err := boatIDField(p.object)
	if err != nil {
		return Record{}, true, err
	}

	parts := []string{boatID}
	defaults := []struct {
		name string
		def  string
	}{
		{"speed", DefaultSpeed},
		{"targetLat", DefaultCoord},
		{"targetLon", DefaultCoord},
		{"kp", DefaultGain},
		{"ki", DefaultGain},
		{"kd", DefaultGain},
	}
	gainsGiven := 0
	for _, f := range defaults {
		v, given, err := numberField(p.object, f.name)
		if err != nil {
			return Record{}, true, err
		}
		if !given {
			v = f.def
		} else if f.name == "kp" || f.name == "ki" || f.name == "kd" {
			gainsGiven++
		}
		parts = append(parts, v)
	}

	return Record{
		BoatID:         boatID,
		Command:        strings.Join(parts, ","),
		Shape:          ShapeFields,
		DefaultedGains: gainsGiven == 0,
	}, true, nil
}

func parseWrapped(p payload) (Record, bool, error) {
	if p.object == nil {
		return Record{}, false, nil
	}

	boatID, err := boatIDField(p.object)
	if err != nil {
		return Record{}, true, err
	}

	raw, ok := p.object["command"]
	if !ok || raw == nil {
		return Record{}, true, missing("command")
	}
	cmd, ok := raw.(string)
	if !ok {
		return Record{}, true, malformed("command", "must be a string")
	}
	if strings.TrimSpace(cmd) == "" {
		return Record{}, true, missing("command")
	}
	if lead := leadingField(cmd); lead != boatID {
		return Record{}, true, malformed("command", "leading field %q does not match boatId %q", lead, boatID)
	}

	return Record{BoatID: boatID, Command: cmd, Shape: ShapeWrapped}, true, nil
}

func parseRaw(p payload) (Record, bool, error) {
	if p.object != nil {
		return Record{}, false, nil
	}

	cmd := string(p.body)
	boatID := leadingField(cmd)
	if boatID == "" {
		return Record{}, true, missing("boatId")
	}
	if err := checkBoatID(boatID); err != nil {
		return Record{}, true, err
	}
	return Record{BoatID: boatID, Command: cmd, Shape: ShapeRaw}, true, nil
}

func leadingField(cmd string) string {
	lead, _, _ := strings.Cut(cmd, ",")
	return strings.TrimSpace(lead)
}

func boatIDField(obj map[string]any) (string, error) {
	raw, ok := obj["boatId"]
	if !ok || raw == nil {
		return "", missing("boatId")
	}

	var id string
	switch v := raw.(type) {
	case string:
		id = strings.TrimSpace(v)
	case json.Number:
		id = v.String()
	default:
		return "", malformed("boatId", "must be a string or number")
	}
	if id == "" {
		return "", missing("boatId")
	}
	return id, checkBoatID(id)
}

func checkBoatID(id string) error {
	for _, r := range id {
		if r == ',' || unicode.IsControl(r) {
			return malformed("boatId", "contains a comma or control character")
		}
	}
	return nil
}

// numberField returns the literal text of a numeric field so 1.0 stays 1.0.
// Numeric strings are accepted.
func numberField(obj map[string]any, name string) (string, bool, error) {
	raw, ok := obj[name]
	if !ok || raw == nil {
		return "", false, nil
	}

	switch v := raw.(type) {
	case json.Number:
		return v.String(), true, nil
	case string:
		s := strings.TrimSpace(v)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return "", true, malformed(name, "%q is not a number", v)
		}
		return s, true, nil
	default:
		return "", true, malformed(name, "must be a number")
	}
}
