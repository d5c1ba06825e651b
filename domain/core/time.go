package core

import "time"

// Timestamp is a wall-clock instant recorded on session boundaries.
type Timestamp time.Time

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp(t)
}

// Time returns the underlying time.Time
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}

// Elapsed is a session-relative offset, measured from the end of calibration.
type Elapsed time.Duration

// NewElapsed returns the offset of t from origin.
func NewElapsed(origin, t time.Time) Elapsed {
	return Elapsed(t.Sub(origin))
}

func (e Elapsed) Duration() time.Duration { return time.Duration(e) }

// Seconds returns the offset in fractional seconds, the unit written to session logs.
func (e Elapsed) Seconds() float64 { return time.Duration(e).Seconds() }

func (e Elapsed) String() string { return time.Duration(e).String() }
