// Package simulated is a synthetic EMG source for demos and tests without
// hardware. It emits rest noise on every channel plus a contraction level per
// control channel that follows a calibration script and then a live effort set
// from outside, e.g. by the viewer's keyboard controls.
package simulated

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"emgreach/domain/emg"
	"emgreach/internal"
	"emgreach/internal/config"
	"emgreach/ports"
)

// Config controls the synthetic stream.
type Config struct {
	Channels   int
	SampleRate float64 // samples per second per channel
	// MaxSamples caps one Read; the remainder is dropped like an overrun.
	MaxSamples int
	// NoiseSigma is the rest noise standard deviation in microvolts.
	NoiseSigma float64
	// Contraction is the mean rectified level of a full contraction, in microvolts.
	Contraction float64
	// IdlePoll is how long Read waits when no sample has accrued yet.
	IdlePoll time.Duration
	Seed     int64
}

// DefaultConfig returns a 16 channel, 2 kHz stream.
func DefaultConfig() Config {
	return Config{
		Channels:    16,
		SampleRate:  2000,
		MaxSamples:  850,
		NoiseSigma:  4,
		Contraction: 120,
		IdlePoll:    time.Millisecond,
		Seed:        1,
	}
}

// Device implements ports.AcquisitionPort with generated samples.
type Device struct {
	cfg    Config
	clock  ports.ClockPort
	logger *internal.Logger
	script *Script

	mu      sync.Mutex
	noise   distuv.Normal
	signs   *rand.Rand
	started time.Time
	last    time.Time
	running bool
	effort  emg.ChannelMagnitude
}

// New creates a simulated device. script may be nil for live effort only.
func New(cfg Config, clock ports.ClockPort, script *Script, logger *internal.Logger) *Device {
	if cfg.Channels < emg.MinBatchChannels {
		cfg.Channels = emg.MinBatchChannels
	}
	src := rand.NewPCG(uint64(cfg.Seed), 0x5eed)
	return &Device{
		cfg:    cfg,
		clock:  clock,
		logger: internal.OrDefault(logger).With("simulated"),
		script: script,
		noise:  distuv.Normal{Mu: 0, Sigma: cfg.NoiseSigma, Src: src},
		signs:  rand.New(rand.NewPCG(uint64(cfg.Seed), 0x5157)),
	}
}

func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.started = d.clock.Now()
	d.last = d.started
	d.running = true
	d.logger.Info("simulating %d channels at %.0f Hz", d.cfg.Channels, d.cfg.SampleRate)
	return nil
}

// SetEffort sets the live contraction level of each control channel as a
// fraction of a full contraction.
func (d *Device) SetEffort(effort emg.ChannelMagnitude) {
	d.mu.Lock()
	d.effort = effort
	d.mu.Unlock()
}

// Read returns the samples accrued since the previous read.
func (d *Device) Read(ctx context.Context) (emg.ChannelBatch, error) {
	n := d.accrued()
	if n == 0 {
		if err := d.clock.Sleep(ctx, d.cfg.IdlePoll); err != nil {
			return emg.ChannelBatch{}, err
		}
		n = d.accrued()
	}
	if n == 0 {
		return emg.ChannelBatch{}, nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return emg.ChannelBatch{}, nil
	}

	levels := d.levelsLocked(d.last.Sub(d.started))
	d.last = d.last.Add(time.Duration(float64(n) / d.cfg.SampleRate * float64(time.Second)))
	if n > d.cfg.MaxSamples && d.cfg.MaxSamples > 0 {
		n = d.cfg.MaxSamples
		d.last = d.clock.Now()
	}

	batch := emg.NewChannelBatch(d.cfg.Channels, n)
	for c := range batch.Samples {
		for s := range batch.Samples[c] {
			v := levels[c] + math.Abs(d.noise.Rand())
			if d.signs.IntN(2) == 0 {
				v = -v
			}
			batch.Samples[c][s] = v / emg.MicrovoltsPerVolt
		}
	}
	return batch, nil
}

func (d *Device) accrued() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return 0
	}
	return int(d.clock.Now().Sub(d.last).Seconds() * d.cfg.SampleRate)
}

// levelsLocked maps control channel efforts onto raw channels. The left
// channel drives raw channel 4, and raw channel 2 carries only noise.
func (d *Device) levelsLocked(elapsed time.Duration) []float64 {
	effort := d.effort
	if d.script != nil {
		if scripted, ok := d.script.At(elapsed); ok {
			effort = scripted
		}
	}
	levels := make([]float64, d.cfg.Channels)
	levels[0] = effort[emg.ChannelUp] * d.cfg.Contraction
	levels[1] = effort[emg.ChannelDown] * d.cfg.Contraction
	levels[3] = effort[emg.ChannelRight] * d.cfg.Contraction
	levels[emg.ReplacementChannel] = effort[emg.ChannelLeft] * d.cfg.Contraction
	return levels
}

func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		d.logger.Info("stopped after %s", d.clock.Now().Sub(d.started).Round(time.Millisecond))
	}
	d.running = false
	return nil
}

// Script replays the effort a cooperative participant would make during
// calibration: relaxed through the rest phase, then a full contraction of
// each channel in turn during its MVC window.
type Script struct {
	rest   time.Duration
	settle time.Duration
	window time.Duration
}

// NewCalibrationScript builds a script matching the calibration timing.
func NewCalibrationScript(cfg config.CalibrationConfig) *Script {
	return &Script{rest: cfg.RestDuration, settle: cfg.MVCSettle, window: cfg.MVCDuration}
}

// At returns the scripted effort at elapsed, or false once the script ends.
func (s *Script) At(elapsed time.Duration) (emg.ChannelMagnitude, bool) {
	var effort emg.ChannelMagnitude
	if elapsed < s.rest {
		return effort, true
	}
	step := s.settle + s.window
	if step <= 0 {
		return effort, false
	}
	i := int((elapsed - s.rest) / step)
	if i >= emg.ChannelCount {
		return effort, false
	}
	effort[i] = 1
	return effort, true
}
