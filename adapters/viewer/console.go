package viewer

import (
	"sync"

	"emgreach/domain/session"
	"emgreach/domain/task"
	"emgreach/internal"
	"emgreach/ports"
)

var (
	_ ports.RendererPort = (*Console)(nil)
	_ ports.PrompterPort = (*Console)(nil)
)

// Console renders the session as log lines, for headless runs with the
// viewer server disabled.
type Console struct {
	canvas task.Canvas
	logger *internal.Logger

	mu     sync.Mutex
	active bool
}

// NewConsole creates a headless renderer and prompter.
func NewConsole(canvas task.Canvas, logger *internal.Logger) *Console {
	return &Console{canvas: canvas, logger: internal.OrDefault(logger).With("console")}
}

func (c *Console) Canvas() task.Canvas { return c.canvas }

// CursorMoved logs activation changes at INFO and every move at TRACE.
func (c *Console) CursorMoved(cursor task.Cursor) {
	c.mu.Lock()
	changed := cursor.Active != c.active
	c.active = cursor.Active
	c.mu.Unlock()
	if changed {
		c.logger.Info("cursor active=%t at (%.0f, %.0f)", cursor.Active, cursor.Position.X, cursor.Position.Y)
		return
	}
	c.logger.Trace("cursor (%.1f, %.1f)", cursor.Position.X, cursor.Position.Y)
}

func (c *Console) TargetVisibility(zone task.TargetZone) {
	c.logger.Info("target %s %s", zone.Direction, zone.Visibility)
}

func (c *Console) HitsChanged(text string) {
	c.logger.Info("%s", text)
}

func (c *Console) StateChanged(state session.State) {
	c.logger.Info("session state: %s", state)
}

// Prompt logs the instruction for the operator to read out.
func (c *Console) Prompt(message string) {
	c.logger.Info(">> %s", message)
}
