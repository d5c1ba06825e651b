package viewer

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"emgreach/domain/emg"
	"emgreach/internal"
	apperrors "emgreach/internal/errors"
)

//go:embed static/*
var embeddedFiles embed.FS

const (
	pingInterval    = 30 * time.Second
	shutdownTimeout = 5 * time.Second
)

// EffortSetter accepts manual channel effort, used to drive the simulated
// device from the browser.
type EffortSetter interface {
	SetEffort(effort emg.ChannelMagnitude)
}

// EffortRequest is the body of POST /api/effort, each channel a fraction of a
// full contraction.
type EffortRequest struct {
	Up    float64 `json:"up"`
	Down  float64 `json:"down"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
}

// Magnitude orders the request by channel.
func (r EffortRequest) Magnitude() emg.ChannelMagnitude {
	var m emg.ChannelMagnitude
	m[emg.ChannelUp] = r.Up
	m[emg.ChannelDown] = r.Down
	m[emg.ChannelLeft] = r.Left
	m[emg.ChannelRight] = r.Right
	return m
}

// Server serves the live task view.
type Server struct {
	addr   string
	hub    *Hub
	effort EffortSetter
	router *gin.Engine
	logger *internal.Logger
}

// NewServer wires the routes. effort may be nil, in which case POST /api/effort
// answers 404.
func NewServer(addr string, hub *Hub, effort EffortSetter, logger *internal.Logger) *Server {
	s := &Server{
		addr:   addr,
		hub:    hub,
		effort: effort,
		router: gin.New(),
		logger: internal.OrDefault(logger).With("viewer"),
	}
	s.router.Use(gin.Recovery())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(embeddedFiles, "static")
	if err != nil {
		s.logger.Error("embedded static files unavailable: %v", err)
	} else {
		s.router.StaticFS("/static", http.FS(staticFS))
	}

	s.router.GET("/", s.handleIndex)
	api := s.router.Group("/api")
	{
		api.GET("/state", s.handleState)
		api.GET("/events", s.handleEvents)
		api.POST("/effort", s.handleEffort)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("viewer listening on http://%s", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return apperrors.Wrapf(err, "viewer server on %s", s.addr)
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return apperrors.Wrap(err, "viewer shutdown")
	}
	s.logger.Info("viewer stopped")
	return nil
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := embeddedFiles.ReadFile("static/index.html")
	if err != nil {
		s.logger.Error("index page not found: %v", err)
		c.String(http.StatusInternalServerError, "index page not found")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) handleState(c *gin.Context) {
	c.JSON(http.StatusOK, s.hub.Snapshot())
}

func (s *Server) handleEffort(c *gin.Context) {
	if s.effort == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual effort is only available with the simulated device"})
		return
	}
	var req EffortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Up < 0 || req.Down < 0 || req.Left < 0 || req.Right < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "effort must be non-negative"})
		return
	}
	s.effort.SetEffort(req.Magnitude())
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleEvents streams scene changes. The first event is the full snapshot.
func (s *Server) handleEvents(c *gin.Context) {
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	clientChan := make(chan Event, 64)
	select {
	case s.hub.register <- clientChan:
	default:
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "viewer hub registration failed"})
		return
	}
	defer func() {
		select {
		case s.hub.unregister <- clientChan:
		default:
		}
	}()

	snapshot, err := json.Marshal(s.hub.Snapshot())
	if err != nil {
		s.logger.Error("failed to marshal snapshot: %v", err)
		return
	}
	c.SSEvent("snapshot", string(snapshot))
	c.Writer.Flush()

	ctx := c.Request.Context()
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()
	c.Stream(func(w io.Writer) bool {
		select {
		case event, ok := <-clientChan:
			if !ok {
				return false
			}
			payload, err := json.Marshal(event)
			if err != nil {
				s.logger.Error("failed to marshal event: %v", err)
				return true
			}
			c.SSEvent(event.Type, string(payload))
			return true
		case <-ping.C:
			c.SSEvent("ping", `{"status":"alive"}`)
			return true
		case <-s.hub.done:
			return false
		case <-ctx.Done():
			return false
		}
	})
}
