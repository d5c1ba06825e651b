package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SessionID identifies one run in the session store. It is a UUIDv7, so ids
// sort by creation time.
type SessionID string

// ExportName is the human-facing session identifier used to name exported files.
type ExportName string

// NewSessionID creates a new time-ordered session identifier
func NewSessionID() SessionID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return SessionID(id.String())
}

// ParseSessionID accepts any UUID spelling and returns its canonical form.
func ParseSessionID(s string) (SessionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return "", fmt.Errorf("invalid session ID %q: %w", s, err)
	}
	return SessionID(id.String()), nil
}

func (id SessionID) String() string { return string(id) }
func (id SessionID) IsEmpty() bool  { return id == "" }

func (n ExportName) String() string { return string(n) }
func (n ExportName) IsEmpty() bool  { return n == "" }

// exportLayout matches the timestamp suffix of exported session files.
const exportLayout = "20060102_150405"

// NewExportName derives the export name for a session started at t,
// e.g. emg_data_20240101_120000.
func NewExportName(t time.Time) ExportName {
	return ExportName("emg_data_" + t.Format(exportLayout))
}
