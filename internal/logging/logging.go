// Package logging sets up slog output for the boatlink binaries: a text log
// file (or stdout), optional Graylog and OpenTelemetry handlers, and
// request-scoped attributes carried in a context.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LogFilePath builds a log file path using OS-appropriate path separators.
func LogFilePath(logsDir, component string, sessionStart time.Time) string {
	return filepath.Join(
		logsDir,
		fmt.Sprintf("%s.%s.log", component, sessionStart.Format("20060102_150405")),
	)
}

// OpenLogFile creates logsDir if needed and opens a fresh log file for the
// component. An existing file with the same name is moved aside to .old.
func OpenLogFile(logsDir, component string, sessionStart time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, "", fmt.Errorf("creating logs dir %s: %w", logsDir, err)
	}

	path := LogFilePath(logsDir, component, sessionStart)
	if _, err := os.Stat(path); err == nil {
		_ = os.Rename(path, path+".old")
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, path, fmt.Errorf("opening log file %s: %w", path, err)
	}
	return f, path, nil
}
