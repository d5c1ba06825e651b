// Package trial sequences targets, detects hits and drives the session
// lifecycle from calibration to the finished state.
package trial

import (
	"fmt"
	"time"

	"emgreach/domain/session"
	"emgreach/domain/task"
)

// Outcome reports what a machine step changed, so the caller can notify the
// renderer and the log.
type Outcome struct {
	Hit      bool
	Reset    bool
	Shown    *task.TargetZone
	Hidden   *task.TargetZone
	Finished bool
}

// Changed reports whether anything observable happened.
func (o Outcome) Changed() bool {
	return o.Hit || o.Reset || o.Shown != nil || o.Hidden != nil || o.Finished
}

// Machine owns the cursor's active flag, target visibility, the trial index
// and the hit counter. The pending cooldown is a due time checked by Poll.
type Machine struct {
	canvas   task.Canvas
	targets  task.Targets
	sequence Sequence
	index    int
	hits     int
	state    session.State
	cursor   task.Cursor
	cooldown time.Duration
	due      time.Time
	pending  bool
}

// NewMachine creates a machine in the calibrating state with the cursor at
// the canvas center, inactive.
func NewMachine(canvas task.Canvas, radius float64, sequence Sequence, cooldown time.Duration) *Machine {
	return &Machine{
		canvas:   canvas,
		targets:  task.NewTargets(canvas, radius),
		sequence: sequence,
		state:    session.StateCalibrating,
		cursor:   task.Cursor{Position: canvas.Center(), Radius: radius},
		cooldown: cooldown,
	}
}

// Start shows the first target of the sequence.
func (m *Machine) Start() Outcome {
	if len(m.sequence) == 0 {
		m.state = session.StateFinished
		return Outcome{Finished: true}
	}
	return Outcome{Shown: m.show(m.sequence[0])}
}

// Activate leaves calibration and lets the cursor move.
func (m *Machine) Activate(now time.Time) error {
	if m.state != session.StateCalibrating {
		return fmt.Errorf("cannot activate from state %s", m.state)
	}
	m.state = session.StateActive
	m.cursor.Active = true
	return nil
}

// Tick records the cursor's new position and checks it against the current
// target. A hit freezes the cursor and schedules the cooldown; collision is
// only evaluated while active, so one activation counts at most one hit.
func (m *Machine) Tick(pos task.Point, now time.Time) Outcome {
	if m.state != session.StateActive {
		return Outcome{}
	}
	m.cursor.Position = pos

	target := m.targets[m.sequence[m.index]]
	if !m.cursor.Box().Overlaps(target.Box()) {
		return Outcome{}
	}

	m.hits++
	m.cursor.Active = false
	m.state = session.StateCooldown
	m.due = now.Add(m.cooldown)
	m.pending = true
	return Outcome{Hit: true}
}

// Poll fires the pending cooldown transition once its due time has passed.
func (m *Machine) Poll(now time.Time) Outcome {
	if !m.pending || now.Before(m.due) {
		return Outcome{}
	}
	m.pending = false

	m.cursor.Position = m.canvas.Center()
	out := Outcome{Reset: true, Hidden: m.hide(m.sequence[m.index])}

	if m.index+1 >= len(m.sequence) {
		m.state = session.StateFinished
		out.Finished = true
		return out
	}

	m.index++
	m.state = session.StateActive
	m.cursor.Active = true
	out.Shown = m.show(m.sequence[m.index])
	return out
}

// Finish forces the terminal state when a session is aborted.
func (m *Machine) Finish() {
	m.pending = false
	m.cursor.Active = false
	m.state = session.StateFinished
}

func (m *Machine) show(d task.Direction) *task.TargetZone {
	m.targets[d].Visibility = task.Shown
	z := m.targets[d]
	return &z
}

func (m *Machine) hide(d task.Direction) *task.TargetZone {
	m.targets[d].Visibility = task.Hidden
	z := m.targets[d]
	return &z
}

// State returns the lifecycle phase.
func (m *Machine) State() session.State { return m.state }

// Hits returns the number of targets reached so far.
func (m *Machine) Hits() int { return m.hits }

// MaxHits is the sequence length.
func (m *Machine) MaxHits() int { return len(m.sequence) }

// TrialIndex is the position of the current target in the sequence.
func (m *Machine) TrialIndex() int { return m.index }

// Canvas returns the bounds the machine was built for.
func (m *Machine) Canvas() task.Canvas { return m.canvas }

// Cursor returns a copy of the cursor state.
func (m *Machine) Cursor() task.Cursor { return m.cursor }

// Current returns the target being reached for.
func (m *Machine) Current() task.TargetZone {
	if len(m.sequence) == 0 {
		return task.TargetZone{}
	}
	return m.targets[m.sequence[m.index]]
}

// Targets returns a copy of every target zone.
func (m *Machine) Targets() task.Targets { return m.targets }

// HitText is the on-screen hit counter.
func (m *Machine) HitText() string {
	return fmt.Sprintf("Successful Hits: %d/%d", m.hits, len(m.sequence))
}
