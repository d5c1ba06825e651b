package calibration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emgreach/domain/core"
	"emgreach/domain/emg"
	"emgreach/internal/config"
	"emgreach/internal/testkit"
)

var testConfig = config.CalibrationConfig{
	RestDuration: 5 * time.Second,
	MVCSettle:    2 * time.Second,
	MVCDuration:  2 * time.Second,
	Attempts:     1,
}

type fixture struct {
	clock    *testkit.FakeClock
	device   *testkit.ScriptedDevice
	prompter *testkit.RecordingPrompter
	engine   *Engine
}

func newFixture(cfg config.CalibrationConfig, script testkit.ScriptFunc) *fixture {
	clock := testkit.NewFakeClock(time.Unix(1700000000, 0))
	device := testkit.NewScriptedDevice(clock, 100*time.Millisecond, script)
	prompter := &testkit.RecordingPrompter{}
	return &fixture{
		clock:    clock,
		device:   device,
		prompter: prompter,
		engine:   NewEngine(device, prompter, clock, cfg, nil),
	}
}

// phaseScript returns rest magnitudes until restEnd and then contraction
// magnitudes for whichever channel is being recorded.
func phaseScript(start time.Time, rest, mvc emg.ChannelMagnitude) testkit.ScriptFunc {
	restEnd := start.Add(testConfig.RestDuration)
	window := testConfig.MVCSettle + testConfig.MVCDuration
	return func(_ int, now time.Time) emg.ChannelBatch {
		if !now.After(restEnd) {
			return testkit.BatchOf(rest, 4)
		}
		ch := int((now.Sub(restEnd) - time.Nanosecond) / window)
		if ch >= emg.ChannelCount {
			ch = emg.ChannelCount - 1
		}
		mag := rest
		mag[ch] = mvc[ch]
		return testkit.BatchOf(mag, 4)
	}
}

func TestCalibrateBuildsProfile(t *testing.T) {
	start := time.Unix(1700000000, 0)
	f := newFixture(testConfig, phaseScript(start, emg.ChannelMagnitude{10, 20, 0.01, 40}, emg.ChannelMagnitude{100, 200, 300, 400}))

	profile, err := f.engine.Calibrate(context.Background())
	require.NoError(t, err)

	noise := profile.NoiseLevels()
	assert.InDelta(t, 11, noise[emg.ChannelUp], 1e-6)
	assert.InDelta(t, 22, noise[emg.ChannelDown], 1e-6)
	assert.Equal(t, DefaultFloor, noise[emg.ChannelLeft], "floor applies to quiet channels")
	assert.InDelta(t, 44, noise[emg.ChannelRight], 1e-6)

	max := profile.MaxContractions()
	for c, want := range []float64{100, 200, 300, 400} {
		assert.InDelta(t, want, max[c], 1e-6, "channel %d", c)
	}
	assert.Equal(t, f.clock.Now(), profile.CompletedAt())

	assert.Equal(t, []string{
		"Calibration started. Please relax your arm for 5 seconds...",
		"Right arm up..",
		"Right arm down",
		"Left arm left...",
		"Left arm to right...",
	}, f.prompter.Messages())
}

func TestRestPhaseWithoutDataIsInsufficient(t *testing.T) {
	f := newFixture(testConfig, testkit.Empty())

	_, err := f.engine.RestPhase(context.Background())
	assert.ErrorIs(t, err, core.ErrInsufficientCalibrationData)
	assert.True(t, core.IsCalibrationError(err))
	assert.Greater(t, f.device.Reads(), 0)
}

func TestCalibrateWithoutDataFails(t *testing.T) {
	f := newFixture(testConfig, testkit.Empty())

	profile, err := f.engine.Calibrate(context.Background())
	assert.Nil(t, profile)
	assert.ErrorIs(t, err, core.ErrInsufficientCalibrationData)
}

func TestMVCMeanNotPeak(t *testing.T) {
	cfg := testConfig
	cfg.MVCSettle = 0
	cfg.MVCDuration = 400 * time.Millisecond
	values := []float64{1, 9, 1, 9}
	f := newFixture(cfg, func(n int, _ time.Time) emg.ChannelBatch {
		v := values[n%len(values)]
		return testkit.BatchOf(emg.ChannelMagnitude{v, v, v, v}, 2)
	})

	max, err := f.engine.MVCPhase(context.Background())
	require.NoError(t, err)
	for _, v := range max {
		assert.InDelta(t, 5, v, 1e-6)
	}
}

func TestDegenerateProfileRetriesThenFails(t *testing.T) {
	cfg := testConfig
	cfg.Attempts = 3
	f := newFixture(cfg, testkit.Constant(emg.ChannelMagnitude{5, 5, 5, 5}))

	_, err := f.engine.Calibrate(context.Background())
	assert.ErrorIs(t, err, core.ErrDegenerateProfile)

	rests := 0
	for _, m := range f.prompter.Messages() {
		if m == "Calibration started. Please relax your arm for 5 seconds..." {
			rests++
		}
	}
	assert.Equal(t, 3, rests, "each attempt restarts from the rest phase")
}

func TestDeviceErrorIsNotRetried(t *testing.T) {
	cfg := testConfig
	cfg.Attempts = 3
	f := newFixture(cfg, testkit.Empty())
	f.device.ReadErr = errors.New("link down")

	_, err := f.engine.Calibrate(context.Background())
	assert.EqualError(t, err, "link down")
	assert.Len(t, f.prompter.Messages(), 1)
}

func TestCalibrateHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(testConfig, testkit.Empty())

	_, err := f.engine.Calibrate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
