package viewer

import (
	"sync"
	"time"

	"emgreach/domain/session"
	"emgreach/domain/task"
	"emgreach/internal"
	"emgreach/ports"
)

var (
	_ ports.RendererPort = (*Hub)(nil)
	_ ports.PrompterPort = (*Hub)(nil)
)

// Event kinds streamed to connected browsers.
const (
	EventCursor = "cursor"
	EventTarget = "target"
	EventHits   = "hits"
	EventState  = "state"
	EventPrompt = "prompt"
)

// DefaultCursorInterval caps cursor events to roughly one per display frame.
const DefaultCursorInterval = 15 * time.Millisecond

// Event is one visible change pushed over the stream.
type Event struct {
	Type      string           `json:"type"`
	Cursor    *task.Cursor     `json:"cursor,omitempty"`
	Target    *task.TargetZone `json:"target,omitempty"`
	Text      string           `json:"text,omitempty"`
	State     session.State    `json:"state,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// Snapshot is the full scene, served to clients that join mid-session.
type Snapshot struct {
	Canvas  task.Canvas       `json:"canvas"`
	Cursor  task.Cursor       `json:"cursor"`
	Targets []task.TargetZone `json:"targets"`
	HitText string            `json:"hit_text"`
	State   session.State     `json:"state"`
	Prompt  string            `json:"prompt"`
}

// Hub fans renderer and prompter notifications out to SSE clients and keeps
// the latest scene for /api/state. It satisfies ports.RendererPort and
// ports.PrompterPort.
type Hub struct {
	canvas task.Canvas
	logger *internal.Logger

	mu         sync.RWMutex
	cursor     task.Cursor
	targets    task.Targets
	hitText    string
	state      session.State
	prompt     string
	lastCursor time.Time

	cursorInterval time.Duration
	now            func() time.Time

	clients    map[chan Event]bool
	clientsMu  sync.RWMutex
	register   chan chan Event
	unregister chan chan Event
	broadcast  chan Event
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a hub for a canvas of the given size and starts its loop.
func NewHub(canvas task.Canvas, radius float64, logger *internal.Logger) *Hub {
	h := &Hub{
		canvas:         canvas,
		logger:         internal.OrDefault(logger).With("viewer"),
		targets:        task.NewTargets(canvas, radius),
		cursor:         task.Cursor{Position: canvas.Center(), Radius: radius},
		cursorInterval: DefaultCursorInterval,
		now:            time.Now,
		clients:        make(map[chan Event]bool),
		register:       make(chan chan Event, 10),
		unregister:     make(chan chan Event, 10),
		broadcast:      make(chan Event, 256),
		done:           make(chan struct{}),
	}
	go h.run()
	return h
}

// SetCursorInterval changes the cursor throttle; zero sends every move.
func (h *Hub) SetCursorInterval(d time.Duration) {
	h.mu.Lock()
	h.cursorInterval = d
	h.mu.Unlock()
}

// Close stops the hub loop and disconnects every client.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case ch := <-h.register:
			h.clientsMu.Lock()
			h.clients[ch] = true
			h.logger.Debug("client registered (total clients: %d)", len(h.clients))
			h.clientsMu.Unlock()

		case ch := <-h.unregister:
			h.clientsMu.Lock()
			if h.clients[ch] {
				delete(h.clients, ch)
				close(ch)
				h.logger.Debug("client unregistered (remaining clients: %d)", len(h.clients))
			}
			h.clientsMu.Unlock()

		case event := <-h.broadcast:
			h.clientsMu.RLock()
			for ch := range h.clients {
				select {
				case ch <- event:
				default:
					h.logger.Trace("client channel full, skipping %s event", event.Type)
				}
			}
			h.clientsMu.RUnlock()

		case <-h.done:
			h.clientsMu.Lock()
			for ch := range h.clients {
				delete(h.clients, ch)
				close(ch)
			}
			h.clientsMu.Unlock()
			return
		}
	}
}

// ClientCount returns the number of connected stream clients.
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) publish(event Event) {
	event.Timestamp = h.now()
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("broadcast channel full, dropping %s event", event.Type)
	}
}

// Canvas reports the drawing surface size.
func (h *Hub) Canvas() task.Canvas {
	return h.canvas
}

// CursorMoved records the cursor and streams it unless the previous move was
// sent less than the cursor interval ago. Activation changes always go out.
func (h *Hub) CursorMoved(cursor task.Cursor) {
	h.mu.Lock()
	now := h.now()
	send := cursor.Active != h.cursor.Active ||
		h.cursorInterval <= 0 ||
		now.Sub(h.lastCursor) >= h.cursorInterval
	h.cursor = cursor
	if send {
		h.lastCursor = now
	}
	h.mu.Unlock()

	if send {
		h.publish(Event{Type: EventCursor, Cursor: &cursor})
	}
}

// TargetVisibility records and streams a target zone change.
func (h *Hub) TargetVisibility(zone task.TargetZone) {
	h.mu.Lock()
	h.targets[zone.Direction] = zone
	h.mu.Unlock()
	h.publish(Event{Type: EventTarget, Target: &zone})
}

// HitsChanged records and streams the hit counter text.
func (h *Hub) HitsChanged(text string) {
	h.mu.Lock()
	h.hitText = text
	h.mu.Unlock()
	h.publish(Event{Type: EventHits, Text: text})
}

// StateChanged records and streams the session phase.
func (h *Hub) StateChanged(state session.State) {
	h.mu.Lock()
	h.state = state
	h.mu.Unlock()
	h.logger.Info("session state: %s", state)
	h.publish(Event{Type: EventState, State: state})
}

// Prompt shows an instruction to the participant.
func (h *Hub) Prompt(message string) {
	h.mu.Lock()
	h.prompt = message
	h.mu.Unlock()
	h.logger.Info("prompt: %s", message)
	h.publish(Event{Type: EventPrompt, Text: message})
}

// Snapshot returns a copy of the current scene.
func (h *Hub) Snapshot() Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()
	targets := make([]task.TargetZone, len(h.targets))
	copy(targets, h.targets[:])
	return Snapshot{
		Canvas:  h.canvas,
		Cursor:  h.cursor,
		Targets: targets,
		HitText: h.hitText,
		State:   h.state,
		Prompt:  h.prompt,
	}
}
