// Package motion converts calibrated channel magnitudes into cursor motion
// through antagonist-pair competition.
package motion

import (
	"emgreach/domain/emg"
	"emgreach/domain/task"
	"emgreach/internal"
)

// Gain scales a normalized effort of 1.0 into pixels per tick.
const Gain = 150.0

// Normalize maps v onto the [threshold, max] span. Values below threshold are
// zero; values above max are not clamped and exceed 1.
func Normalize(v, threshold, max float64) float64 {
	if v < threshold {
		return 0
	}
	return (v - threshold) / (max - threshold)
}

// Compete applies winner-take-all to an antagonist pair: the smaller value is
// zeroed, and on a tie b is zeroed.
func Compete(a, b float64) (float64, float64) {
	if a < b {
		return 0, b
	}
	return a, 0
}

// Deltas is the velocity command produced for one tick.
type Deltas struct {
	DX float64
	DY float64
}

// Mapper turns channel magnitudes into clamped cursor positions.
type Mapper struct {
	canvas task.Canvas
	logger *internal.Logger
}

// NewMapper creates a mapper clamping to canvas
func NewMapper(canvas task.Canvas, logger *internal.Logger) *Mapper {
	return &Mapper{canvas: canvas, logger: internal.OrDefault(logger).With("motion")}
}

// Map computes the next cursor position. It reports false and leaves the
// position unchanged while the cursor is inactive or no profile exists yet.
func (m *Mapper) Map(mag emg.ChannelMagnitude, profile *emg.CalibrationProfile, cursor task.Cursor) (task.Point, Deltas, bool) {
	if !cursor.Active || profile == nil {
		return cursor.Position, Deltas{}, false
	}

	var d Deltas
	if up, down, ok := axis(mag, profile, emg.ChannelUp, emg.ChannelDown); ok {
		d.DY = Gain*down - Gain*up
		if m.logger.TraceEnabled() {
			m.logger.Trace("vertical up=%.4f down=%.4f dy=%.2f", up, down, d.DY)
		}
	}
	if left, right, ok := axis(mag, profile, emg.ChannelLeft, emg.ChannelRight); ok {
		d.DX = Gain*right - Gain*left
		if m.logger.TraceEnabled() {
			m.logger.Trace("horizontal left=%.4f right=%.4f dx=%.2f", left, right, d.DX)
		}
	}

	next := m.canvas.Clamp(cursor.Position.Add(d.DX, d.DY), cursor.Radius)
	return next, d, true
}

// axis normalizes and resolves one antagonist pair. The first channel pushes
// toward negative coordinates and wins ties.
func axis(mag emg.ChannelMagnitude, p *emg.CalibrationProfile, neg, pos emg.Channel) (float64, float64, bool) {
	if mag.Of(neg) < p.Noise(neg) && mag.Of(pos) < p.Noise(pos) {
		return 0, 0, false
	}
	a := Normalize(mag.Of(neg), p.Noise(neg), p.Max(neg))
	b := Normalize(mag.Of(pos), p.Noise(pos), p.Max(pos))
	a, b = Compete(a, b)
	return a, b, true
}
