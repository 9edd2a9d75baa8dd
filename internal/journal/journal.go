// Package journal records every command handed to the radio transport as a
// JSON line, whether it was written to the serial link, simulated, or failed.
package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Outcome values written to the journal.
const (
	OutcomeSent      = "sent"
	OutcomeSimulated = "simulated"
	OutcomeFailed    = "failed"
)

// Entry is one transmission attempt.
type Entry struct {
	CommandID string
	BoatID    string
	Shape     string
	Mode      string
	Outcome   string
	Command   string
	Err       error
}

// Journal appends entries to a JSON-lines writer.
type Journal struct {
	log    zerolog.Logger
	closer io.Closer
}

// New writes entries to w. Concurrent Record calls are serialized.
func New(w io.Writer) *Journal {
	return &Journal{
		log: zerolog.New(zerolog.SyncWriter(w)).With().Timestamp().Logger(),
	}
}

// Nop returns a journal that discards entries.
func Nop() *Journal {
	return &Journal{log: zerolog.Nop()}
}

// Open appends to the file at path, creating parent directories. An empty
// path returns a Nop journal.
func Open(path string) (*Journal, error) {
	if path == "" {
		return Nop(), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating journal dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}
	j := New(f)
	j.closer = f
	return j, nil
}

// Record writes one entry.
func (j *Journal) Record(e Entry) {
	ev := j.log.Info()
	if e.Err != nil {
		ev = j.log.Error().Err(e.Err)
	}
	ev.Str("commandId", e.CommandID).
		Str("boatId", e.BoatID).
		Str("shape", e.Shape).
		Str("mode", e.Mode).
		Str("outcome", e.Outcome).
		Str("command", e.Command).
		Msg("transmission")
}

// Close closes the underlying file, if any.
func (j *Journal) Close() error {
	if j.closer == nil {
		return nil
	}
	return j.closer.Close()
}
