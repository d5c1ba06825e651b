package task

// Point is a canvas coordinate in pixels; +y points down.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Add returns p translated by (dx, dy).
func (p Point) Add(dx, dy float64) Point {
	return Point{X: p.X + dx, Y: p.Y + dy}
}

// Rect is an axis-aligned bounding box.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// BoxAround returns the bounding box of a circle.
func BoxAround(center Point, radius float64) Rect {
	return Rect{
		MinX: center.X - radius,
		MinY: center.Y - radius,
		MaxX: center.X + radius,
		MaxY: center.Y + radius,
	}
}

// Overlaps reports strict overlap; touching edges do not count.
func (r Rect) Overlaps(o Rect) bool {
	return r.MaxX > o.MinX && r.MinX < o.MaxX &&
		r.MaxY > o.MinY && r.MinY < o.MaxY
}

// Canvas is the drawing surface size reported by the renderer.
type Canvas struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the canvas midpoint, where the cursor starts every trial.
func (c Canvas) Center() Point {
	return Point{X: c.Width / 2, Y: c.Height / 2}
}

// Clamp keeps a cursor of the given radius inside the canvas. The bottom margin
// is two radii while every other edge uses one.
func (c Canvas) Clamp(p Point, radius float64) Point {
	return Point{
		X: clamp(p.X, radius, c.Width-radius),
		Y: clamp(p.Y, radius, c.Height-2*radius),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}
