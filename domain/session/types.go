package session

import (
	"strconv"

	"emgreach/domain/core"
)

// State is the session lifecycle phase.
type State string

const (
	StateCalibrating State = "calibrating"
	StateActive      State = "active"
	StateCooldown    State = "cooldown"
	StateFinished    State = "finished"
)

// IsTerminal reports whether no further ticks may be processed.
func (s State) IsTerminal() bool {
	return s == StateFinished
}

// Header is the column row written ahead of every exported record set.
var Header = []string{"Trial", "Timestamp", "Signal Strength", "X Position", "Y Position"}

// Record is one active tick of the session log.
type Record struct {
	Trial          int          `json:"trial" db:"trial"`
	Elapsed        core.Elapsed `json:"elapsed" db:"elapsed_ns"`
	SignalStrength float64      `json:"signal_strength" db:"signal_strength"`
	X              float64      `json:"x" db:"x"`
	Y              float64      `json:"y" db:"y"`
}

// Row renders the record in Header column order.
func (r Record) Row() []string {
	return []string{
		strconv.Itoa(r.Trial),
		ftoa(r.Elapsed.Seconds()),
		ftoa(r.SignalStrength),
		ftoa(r.X),
		ftoa(r.Y),
	}
}

// Values returns the record as typed cells in Header column order.
func (r Record) Values() []interface{} {
	return []interface{}{r.Trial, r.Elapsed.Seconds(), r.SignalStrength, r.X, r.Y}
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Export is everything a persistence sink receives when a session ends.
type Export struct {
	SessionID core.SessionID
	Name      core.ExportName
	Header    []string
	Records   []Record
	Hits      int
	Noise     [4]float64
	Max       [4]float64
	StartedAt core.Timestamp
	EndedAt   core.Timestamp
}
