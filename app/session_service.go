package app

import (
	"context"
	"time"

	"emgreach/domain/core"
	"emgreach/domain/emg"
	"emgreach/domain/session"
	"emgreach/domain/task"
	"emgreach/internal"
	"emgreach/internal/calibration"
	"emgreach/internal/config"
	apperrors "emgreach/internal/errors"
	"emgreach/internal/motion"
	"emgreach/internal/sessionlog"
	"emgreach/internal/signal"
	"emgreach/internal/trial"
	"emgreach/ports"
)

// Calibrator produces the session's calibration profile.
type Calibrator interface {
	Calibrate(ctx context.Context) (*emg.CalibrationProfile, error)
}

// SessionDeps are the collaborators a session talks to. Viewer is optional,
// and Calibrator defaults to the rest and MVC engine on Device.
type SessionDeps struct {
	Device   ports.AcquisitionPort
	Renderer ports.RendererPort
	Prompter ports.PrompterPort
	Sink     ports.SessionSinkPort
	Viewer   ports.ViewerPort
	Clock    ports.ClockPort
	RNG      ports.RNGPort
	Logger   *internal.Logger

	Calibrator Calibrator
}

// Session is the per-run context threaded through every tick. Nothing in it
// is shared with other goroutines except through the log's own locking.
type Session struct {
	ID        core.SessionID
	StartedAt time.Time
	Profile   *emg.CalibrationProfile
	Machine   *trial.Machine
	Log       *sessionlog.Log
	Location  string
}

// SessionService runs one reaching session from calibration to export.
type SessionService struct {
	cfg    *config.Config
	deps   SessionDeps
	logger *internal.Logger
}

// NewSessionService creates a session service
func NewSessionService(cfg *config.Config, deps SessionDeps) *SessionService {
	logger := internal.OrDefault(deps.Logger)
	deps.Logger = logger
	return &SessionService{
		cfg:    cfg,
		deps:   deps,
		logger: logger.With("session"),
	}
}

// Run executes the whole session: it shows the first target, starts the
// device, calibrates, then ticks until every target has been hit. The log is
// flushed only when the session finishes. Any failure after the device starts,
// including a cancelled ctx, finishes the machine and stops the device without
// flushing.
func (s *SessionService) Run(ctx context.Context) (*Summary, error) {
	sess := s.newSession()
	s.deps.Renderer.CursorMoved(sess.Machine.Cursor())
	s.deps.Renderer.HitsChanged(sess.Machine.HitText())
	s.publish(sess.Machine.Start(), sess.Machine)

	if err := s.deps.Device.Start(ctx); err != nil {
		return nil, apperrors.DeviceError("start", err)
	}

	profile, err := s.calibrator().Calibrate(ctx)
	if err != nil {
		s.abort(sess)
		if core.IsCalibrationError(err) {
			return nil, apperrors.CalibrationFailed(s.cfg.Calibration.Attempts, err)
		}
		return nil, err
	}
	sess.Profile = profile

	if err := sess.Machine.Activate(s.deps.Clock.Now()); err != nil {
		s.abort(sess)
		return nil, apperrors.Wrap(err, "activate trial machine")
	}
	s.deps.Renderer.StateChanged(sess.Machine.State())
	s.deps.Renderer.CursorMoved(sess.Machine.Cursor())
	s.logger.Info("session %s active with %d targets", sess.ID, sess.Machine.MaxHits())

	if err := s.loop(ctx, sess); err != nil {
		s.abort(sess)
		return nil, err
	}
	return s.finish(ctx, sess), nil
}

func (s *SessionService) calibrator() Calibrator {
	if s.deps.Calibrator != nil {
		return s.deps.Calibrator
	}
	return calibration.NewEngine(s.deps.Device, s.deps.Prompter, s.deps.Clock, s.cfg.Calibration, s.deps.Logger)
}

func (s *SessionService) newSession() *Session {
	canvas := s.deps.Renderer.Canvas()
	if canvas.Width <= 0 || canvas.Height <= 0 {
		canvas = task.Canvas{Width: s.cfg.Task.CanvasWidth, Height: s.cfg.Task.CanvasHeight}
	}
	rng := s.deps.RNG.SeededStream("trial-sequence", s.cfg.Task.Seed)
	seq := trial.NewSequence(rng, s.cfg.Task.Repetitions)
	s.logger.Debug("trial sequence: %v", seq)

	return &Session{
		ID:        core.NewSessionID(),
		StartedAt: s.deps.Clock.Now(),
		Machine:   trial.NewMachine(canvas, s.cfg.Task.CursorRadius, seq, s.cfg.Task.Cooldown),
		Log:       sessionlog.New(s.deps.Logger),
	}
}

// loop runs ticks back to back until the machine finishes. A tick never
// overlaps the next one; the next is armed only after this one returns.
func (s *SessionService) loop(ctx context.Context, sess *Session) error {
	reducer := signal.NewReducer()
	mapper := motion.NewMapper(sess.Machine.Canvas(), s.deps.Logger)

	for {
		if err := ctx.Err(); err != nil {
			s.logger.Info("session %s cancelled: %v", sess.ID, err)
			return err
		}

		s.publish(sess.Machine.Poll(s.deps.Clock.Now()), sess.Machine)
		if sess.Machine.State().IsTerminal() {
			return nil
		}

		if err := s.tick(ctx, sess, reducer, mapper); err != nil {
			return err
		}

		if err := s.deps.Clock.Sleep(ctx, s.cfg.Task.TickInterval); err != nil {
			return err
		}
	}
}

// tick is one read, reduce, map, log and collision pass.
func (s *SessionService) tick(ctx context.Context, sess *Session, reducer *signal.Reducer, mapper *motion.Mapper) error {
	batch, err := s.deps.Device.Read(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.DeviceError("read", err)
	}

	mag, err := reducer.Reduce(batch)
	switch {
	case core.IsNoData(err):
		return nil
	case err != nil:
		s.logger.Warn("skipping tick: %v", err)
		return nil
	}

	m := sess.Machine
	pos, _, moved := mapper.Map(mag, sess.Profile, m.Cursor())
	if !moved || m.State() != session.StateActive {
		return nil
	}

	now := s.deps.Clock.Now()
	if m.Hits() < m.MaxHits() {
		sess.Log.Append(session.Record{
			Trial:          m.TrialIndex(),
			Elapsed:        core.NewElapsed(sess.Profile.CompletedAt(), now),
			SignalStrength: mag.SignalStrength(),
			X:              pos.X,
			Y:              pos.Y,
		})
	}

	out := m.Tick(pos, now)
	s.deps.Renderer.CursorMoved(m.Cursor())
	if s.logger.TraceEnabled() {
		s.logger.Trace("position (%.1f, %.1f)", pos.X, pos.Y)
	}
	if out.Hit {
		s.logger.Info("hit %s target, %s", m.Current().Direction, m.HitText())
	}
	s.publish(out, m)
	return nil
}

// publish forwards a machine outcome to the renderer.
func (s *SessionService) publish(out trial.Outcome, m *trial.Machine) {
	if !out.Changed() {
		return
	}
	if out.Hidden != nil {
		s.deps.Renderer.TargetVisibility(*out.Hidden)
	}
	if out.Shown != nil {
		s.deps.Renderer.TargetVisibility(*out.Shown)
	}
	if out.Hit {
		s.deps.Renderer.HitsChanged(m.HitText())
	}
	if out.Reset {
		s.deps.Renderer.CursorMoved(m.Cursor())
	}
	s.deps.Renderer.StateChanged(m.State())
}

// finish flushes the log, opens the export and stops the device. Persistence
// and viewer failures are logged and never abort shutdown.
func (s *SessionService) finish(ctx context.Context, sess *Session) *Summary {
	ctx = context.WithoutCancel(ctx)
	endedAt := s.deps.Clock.Now()

	meta := session.Export{
		SessionID: sess.ID,
		Name:      core.NewExportName(endedAt),
		Hits:      sess.Machine.Hits(),
		Noise:     sess.Profile.NoiseLevels(),
		Max:       sess.Profile.MaxContractions(),
		StartedAt: core.NewTimestamp(sess.StartedAt),
		EndedAt:   core.NewTimestamp(endedAt),
	}

	location, err := sess.Log.Flush(ctx, s.deps.Sink, meta)
	if err != nil {
		s.logger.Error("saving session %s: %v", sess.ID, err)
	} else {
		sess.Location = location
		if s.cfg.Export.Open && s.deps.Viewer != nil && location != "" {
			if err := s.deps.Viewer.Open(ctx, location); err != nil {
				s.logger.Warn("opening %s: %v", location, err)
			}
		}
	}

	s.stopDevice()

	summary := BuildSummary(sess, meta.Name)
	s.logger.Info("session %s finished: %s", sess.ID, summary)
	return summary
}

// abort ends the session without saving: the machine is forced into its
// terminal state, the renderer sees the inactive cursor and the device stops.
func (s *SessionService) abort(sess *Session) {
	sess.Machine.Finish()
	s.deps.Renderer.CursorMoved(sess.Machine.Cursor())
	s.deps.Renderer.StateChanged(sess.Machine.State())
	s.stopDevice()
}

func (s *SessionService) stopDevice() {
	if err := s.deps.Device.Stop(context.Background()); err != nil {
		s.logger.Warn("stopping device: %v", err)
	}
}
