package container

import (
	"context"
	"fmt"

	"emgreach/adapters/acquisition/serialdev"
	"emgreach/adapters/acquisition/simulated"
	"emgreach/adapters/acquisition/trigno"
	"emgreach/adapters/export"
	"emgreach/adapters/sqlstore"
	"emgreach/adapters/system"
	"emgreach/adapters/viewer"
	"emgreach/app"
	"emgreach/domain/task"
	"emgreach/internal"
	"emgreach/internal/config"
	"emgreach/internal/errors"
	"emgreach/ports"
)

// Container holds the collaborators of one session and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Clock *system.Clock
	RNG   *system.RNG
	Store *sqlstore.Store

	// Acquisition; Simulator is set only for the simulated device
	Device    ports.AcquisitionPort
	Simulator *simulated.Device

	// Persistence
	Sink   ports.SessionSinkPort
	Opener ports.ViewerPort

	// Presentation; Hub and Server are nil when the viewer is disabled
	Renderer ports.RendererPort
	Prompter ports.PrompterPort
	Hub      *viewer.Hub
	Server   *viewer.Server
}

// New creates a new dependency container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.OrDefault(logger),
		Clock:  system.NewClock(),
		RNG:    system.NewRNG(),
	}
	return c, nil
}

// Init builds every collaborator a session run needs
func (c *Container) Init(ctx context.Context) error {
	if err := c.initDevice(); err != nil {
		return fmt.Errorf("failed to initialize device: %w", err)
	}
	c.initSinks(ctx)
	c.initPresentation()
	c.Logger.Debug("container initialized: device=%s viewer=%t", c.Config.Device.Kind, c.Hub != nil)
	return nil
}

// initDevice selects the acquisition adapter from the device kind
func (c *Container) initDevice() error {
	d := c.Config.Device
	switch d.Kind {
	case config.DeviceTrigno:
		tc := trigno.DefaultConfig(d.TrignoHost)
		tc.CommandPort = d.CommandPort
		tc.DataPort = d.DataPort
		tc.Channels = d.Channels
		tc.SamplesPerRead = d.SamplesPerRead
		tc.ReadTimeout = d.ReadTimeout
		c.Device = trigno.New(tc, c.Logger)
	case config.DeviceSerial:
		sc := serialdev.Config{Device: d.SerialDevice, Baud: d.SerialBaud, ReadTimeout: d.ReadTimeout}
		c.Device = serialdev.New(sc, serialdev.OpenNative, c.Logger)
	case config.DeviceSimulated:
		simCfg := simulated.DefaultConfig()
		simCfg.Seed = d.SimulatedSeed
		c.Simulator = simulated.New(simCfg, c.Clock, simulated.NewCalibrationScript(c.Config.Calibration), c.Logger)
		c.Device = c.Simulator
	default:
		return errors.ConfigInvalid("unknown device: " + d.Kind)
	}
	return nil
}

// FileSinks returns one sink per configured export format
func FileSinks(cfg *config.Config) []ports.SessionSinkPort {
	var sinks []ports.SessionSinkPort
	for _, format := range cfg.Export.Formats {
		switch format {
		case config.FormatCSV:
			sinks = append(sinks, export.NewCSVSink(cfg.Export.OutputDir))
		case config.FormatXLSX:
			sinks = append(sinks, export.NewXLSXSink(cfg.Export.OutputDir))
		}
	}
	return sinks
}

// initSinks fans out to the file formats and, when a database URL is set, the
// session store. An unreachable store is logged and left out.
func (c *Container) initSinks(ctx context.Context) {
	sinks := FileSinks(c.Config)
	if c.Config.Database.URL != "" {
		store, err := c.OpenStore(ctx)
		if err != nil {
			c.Logger.Error("session store unavailable: %v", err)
		} else {
			c.Store = store
			sinks = append(sinks, store)
		}
	}
	c.Sink = export.NewMultiSink(c.Logger, sinks...)
	if c.Config.Export.Open {
		c.Opener = viewer.NewOpener(nil, c.Logger)
	}
}

// OpenStore connects to the configured session store
func (c *Container) OpenStore(ctx context.Context) (*sqlstore.Store, error) {
	db := c.Config.Database
	if db.URL == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is empty; the session store is disabled")
	}
	return sqlstore.Open(ctx, db.Driver, db.URL, c.Logger)
}

// initPresentation picks the live viewer or the console renderer
func (c *Container) initPresentation() {
	t := c.Config.Task
	canvas := task.Canvas{Width: t.CanvasWidth, Height: t.CanvasHeight}
	if !c.Config.Viewer.Enabled {
		console := viewer.NewConsole(canvas, c.Logger)
		c.Renderer, c.Prompter = console, console
		return
	}

	c.Hub = viewer.NewHub(canvas, t.CursorRadius, c.Logger)
	c.Hub.SetCursorInterval(c.Config.Viewer.CursorInterval)
	c.Renderer, c.Prompter = c.Hub, c.Hub
	var effort viewer.EffortSetter
	if c.Simulator != nil {
		effort = c.Simulator
	}
	c.Server = viewer.NewServer(c.Config.Viewer.Addr, c.Hub, effort, c.Logger)
}

// SessionDeps returns the collaborators in the shape the session service takes
func (c *Container) SessionDeps() app.SessionDeps {
	return app.SessionDeps{
		Device:   c.Device,
		Renderer: c.Renderer,
		Prompter: c.Prompter,
		Sink:     c.Sink,
		Viewer:   c.Opener,
		Clock:    c.Clock,
		RNG:      c.RNG,
		Logger:   c.Logger,
	}
}

// Shutdown releases the store and the viewer hub
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Hub != nil {
		c.Hub.Close()
	}
	if c.Store != nil {
		return c.Store.Close()
	}
	return nil
}
