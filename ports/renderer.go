package ports

import (
	"emgreach/domain/session"
	"emgreach/domain/task"
)

// RendererPort receives every visible change. It never feeds input back to the
// session except the canvas size, which is read once at start.
type RendererPort interface {
	Canvas() task.Canvas
	CursorMoved(cursor task.Cursor)
	TargetVisibility(zone task.TargetZone)
	HitsChanged(text string)
	StateChanged(state session.State)
}
