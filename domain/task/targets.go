// Package task holds the reaching-task data model: canvas geometry, the eight
// directional targets, and the cursor.
package task

import (
	"fmt"
	"math"
)

// Direction labels one of the eight target zones.
type Direction int

const (
	DirectionTop Direction = iota
	DirectionRight
	DirectionBottom
	DirectionLeft
	DirectionTopRight
	DirectionBottomRight
	DirectionBottomLeft
	DirectionTopLeft
)

// DirectionCount is the number of target zones.
const DirectionCount = 8

var directionNames = [DirectionCount]string{
	"top", "right", "bottom", "left",
	"top_right", "bottom_right", "bottom_left", "top_left",
}

// Target offsets from the canvas center, in pixels.
var directionOffsets = [DirectionCount]Point{
	DirectionTop:         {X: 0, Y: -400},
	DirectionRight:       {X: 550, Y: 0},
	DirectionBottom:      {X: 0, Y: 400},
	DirectionLeft:        {X: -550, Y: 0},
	DirectionTopRight:    {X: 275, Y: -200},
	DirectionBottomRight: {X: 275, Y: 200},
	DirectionBottomLeft:  {X: -275, Y: 200},
	DirectionTopLeft:     {X: -275, Y: -200},
}

// Directions returns all directions in their canonical order.
func Directions() []Direction {
	out := make([]Direction, DirectionCount)
	for i := range out {
		out[i] = Direction(i)
	}
	return out
}

func (d Direction) String() string {
	if d < 0 || int(d) >= DirectionCount {
		return fmt.Sprintf("direction(%d)", int(d))
	}
	return directionNames[d]
}

// Offset returns the target's displacement from the canvas center.
func (d Direction) Offset() Point {
	return directionOffsets[d]
}

// MinCanvas is the smallest canvas on which every target lies inside the
// bounds with room for a cursor of the same radius on its far side.
func MinCanvas(radius float64) Canvas {
	var reachX, reachY float64
	for _, off := range directionOffsets {
		reachX = math.Max(reachX, math.Abs(off.X))
		reachY = math.Max(reachY, math.Abs(off.Y))
	}
	return Canvas{
		Width:  2 * (reachX + 2*radius),
		Height: 2 * (reachY + 2*radius),
	}
}

// MarshalText renders the direction label.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Visibility is whether a target zone is drawn.
type Visibility string

const (
	Hidden Visibility = "hidden"
	Shown  Visibility = "shown"
)

// TargetZone is one fixed circular target.
type TargetZone struct {
	Direction  Direction  `json:"direction"`
	Center     Point      `json:"center"`
	Radius     float64    `json:"radius"`
	Visibility Visibility `json:"visibility"`
}

// Box returns the target's bounding box.
func (z TargetZone) Box() Rect {
	return BoxAround(z.Center, z.Radius)
}

// Targets is the fixed set of zones keyed by direction.
type Targets [DirectionCount]TargetZone

// NewTargets lays out every zone around the canvas center, all hidden.
func NewTargets(canvas Canvas, radius float64) Targets {
	var t Targets
	center := canvas.Center()
	for _, d := range Directions() {
		off := d.Offset()
		t[d] = TargetZone{
			Direction:  d,
			Center:     center.Add(off.X, off.Y),
			Radius:     radius,
			Visibility: Hidden,
		}
	}
	return t
}

// Cursor is the controlled circle. Position is written only by motion mapping
// and trial resets; Active only by the trial state machine.
type Cursor struct {
	Position Point   `json:"position"`
	Radius   float64 `json:"radius"`
	Active   bool    `json:"active"`
}

// Box returns the cursor's bounding box.
func (c Cursor) Box() Rect {
	return BoxAround(c.Position, c.Radius)
}
