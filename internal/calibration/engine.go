// Package calibration establishes the per-channel noise floors and maximum
// voluntary contraction scales for one session.
package calibration

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"emgreach/domain/core"
	"emgreach/domain/emg"
	"emgreach/internal"
	"emgreach/internal/config"
	"emgreach/internal/signal"
	"emgreach/ports"
)

const (
	// NoiseMargin lifts the resting mean so rest jitter does not move the cursor.
	NoiseMargin = 1.1
	// DefaultFloor is the lowest noise floor any channel may have, in microvolts.
	DefaultFloor = 0.05
)

const (
	phaseRest = "rest"
	phaseMVC  = "mvc"
)

// Instruction returns the prompt shown before a channel's MVC window.
func Instruction(c emg.Channel) string {
	switch c {
	case emg.ChannelUp:
		return "Right arm up.."
	case emg.ChannelDown:
		return "Right arm down"
	case emg.ChannelLeft:
		return "Left arm left..."
	case emg.ChannelRight:
		return "Left arm to right..."
	default:
		return fmt.Sprintf("Contract channel %d", int(c))
	}
}

// Engine runs the rest and MVC phases against the live device.
type Engine struct {
	device   ports.AcquisitionPort
	reducer  *signal.Reducer
	prompter ports.PrompterPort
	clock    ports.ClockPort
	cfg      config.CalibrationConfig
	logger   *internal.Logger
}

// NewEngine creates a calibration engine
func NewEngine(device ports.AcquisitionPort, prompter ports.PrompterPort, clock ports.ClockPort, cfg config.CalibrationConfig, logger *internal.Logger) *Engine {
	return &Engine{
		device:   device,
		reducer:  signal.NewReducer(),
		prompter: prompter,
		clock:    clock,
		cfg:      cfg,
		logger:   internal.OrDefault(logger).With("calibration"),
	}
}

// Calibrate runs both phases and returns an immutable profile. A calibration
// failure restarts from the rest phase, up to the configured attempts.
func (e *Engine) Calibrate(ctx context.Context) (*emg.CalibrationProfile, error) {
	attempts := e.cfg.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		profile, err := e.calibrateOnce(ctx)
		if err == nil {
			e.logger.Info("calibration complete on attempt %d: noise=%v max=%v",
				attempt, profile.NoiseLevels(), profile.MaxContractions())
			return profile, nil
		}
		if !core.IsCalibrationError(err) {
			return nil, err
		}
		lastErr = err
		e.logger.Warn("calibration attempt %d/%d failed: %v", attempt, attempts, err)
	}
	return nil, lastErr
}

func (e *Engine) calibrateOnce(ctx context.Context) (*emg.CalibrationProfile, error) {
	noise, err := e.RestPhase(ctx)
	if err != nil {
		return nil, err
	}
	max, err := e.MVCPhase(ctx)
	if err != nil {
		return nil, err
	}
	return emg.NewCalibrationProfile(noise, max, e.clock.Now())
}

// RestPhase collects magnitudes while the participant relaxes and derives each
// channel's noise floor as max(mean*1.1, 0.05).
func (e *Engine) RestPhase(ctx context.Context) ([emg.ChannelCount]float64, error) {
	var noise [emg.ChannelCount]float64

	e.prompter.Prompt(fmt.Sprintf("Calibration started. Please relax your arm for %s...", formatSeconds(e.cfg.RestDuration)))
	e.logger.Info("rest phase started for %s", e.cfg.RestDuration)

	samples, err := e.collect(ctx, e.cfg.RestDuration)
	if err != nil {
		return noise, err
	}

	for _, c := range emg.Channels() {
		mean, err := stats.Mean(samples[c])
		if err != nil {
			return noise, core.NewInsufficientCalibrationError(phaseRest, int(c))
		}
		noise[c] = math.Max(mean*NoiseMargin, DefaultFloor)
	}
	e.logger.Info("noise floors set: %v", noise)
	return noise, nil
}

// MVCPhase prompts for each channel in turn, waits out the settle time, then
// takes the mean magnitude of the contraction window as that channel's max.
func (e *Engine) MVCPhase(ctx context.Context) ([emg.ChannelCount]float64, error) {
	var max [emg.ChannelCount]float64

	for _, c := range emg.Channels() {
		e.prompter.Prompt(Instruction(c))
		e.logger.Debug("settling %s before recording %s", e.cfg.MVCSettle, c)
		if err := e.clock.Sleep(ctx, e.cfg.MVCSettle); err != nil {
			return max, err
		}

		e.logger.Debug("recording %s for %s", c, e.cfg.MVCDuration)
		samples, err := e.collect(ctx, e.cfg.MVCDuration)
		if err != nil {
			return max, err
		}
		mean, err := stats.Mean(samples[c])
		if err != nil {
			return max, core.NewInsufficientCalibrationError(phaseMVC, int(c))
		}
		max[c] = mean
	}
	return max, nil
}

// collect reads the device until d has elapsed. NoData ticks contribute nothing.
func (e *Engine) collect(ctx context.Context, d time.Duration) ([emg.ChannelCount]stats.Float64Data, error) {
	var samples [emg.ChannelCount]stats.Float64Data
	deadline := e.clock.Now().Add(d)

	for e.clock.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return samples, err
		}
		batch, err := e.device.Read(ctx)
		if err != nil {
			return samples, err
		}
		mag, err := e.reducer.Reduce(batch)
		if core.IsNoData(err) {
			continue
		}
		if err != nil {
			return samples, err
		}
		for _, c := range emg.Channels() {
			samples[c] = append(samples[c], mag.Of(c))
		}
	}
	return samples, nil
}

func formatSeconds(d time.Duration) string {
	return fmt.Sprintf("%g seconds", d.Seconds())
}
