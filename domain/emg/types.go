// Package emg holds the signal-side data model: raw sample batches, per-tick
// channel magnitudes, and the per-session calibration profile.
package emg

import (
	"time"

	"emgreach/domain/core"
)

// ChannelCount is the number of control channels consumed by the task.
const ChannelCount = 4

// MicrovoltsPerVolt converts raw device volts into the microvolt scale used
// for every magnitude, noise floor and MVC value.
const MicrovoltsPerVolt = 1e6

// Channel 2 is unreliable on the reference electrode layout; its data is
// always replaced by channel 4's raw samples.
const (
	ReplacedChannel    = 2
	ReplacementChannel = 4
)

// MinBatchChannels is the narrowest batch the reducer accepts.
const MinBatchChannels = ReplacementChannel + 1

// Channel identifies one of the four control channels.
type Channel int

const (
	ChannelUp Channel = iota
	ChannelDown
	ChannelLeft
	ChannelRight
)

// Channels returns the control channels in calibration order.
func Channels() []Channel {
	return []Channel{ChannelUp, ChannelDown, ChannelLeft, ChannelRight}
}

func (c Channel) String() string {
	switch c {
	case ChannelUp:
		return "up"
	case ChannelDown:
		return "down"
	case ChannelLeft:
		return "left"
	case ChannelRight:
		return "right"
	default:
		return "unknown"
	}
}

// ChannelBatch is the raw sample block delivered by the acquisition device for
// one tick, channel-major: Samples[channel][sample], in volts.
type ChannelBatch struct {
	Samples [][]float64
}

// NewChannelBatch allocates a zeroed batch.
func NewChannelBatch(channels, samples int) ChannelBatch {
	data := make([][]float64, channels)
	for i := range data {
		data[i] = make([]float64, samples)
	}
	return ChannelBatch{Samples: data}
}

// Channels returns the channel width of the batch.
func (b ChannelBatch) Channels() int {
	return len(b.Samples)
}

// SampleCount returns the per-channel sample count.
func (b ChannelBatch) SampleCount() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// IsEmpty reports whether the batch carries no samples.
func (b ChannelBatch) IsEmpty() bool {
	return b.SampleCount() == 0
}

// ChannelMagnitude is the rectified mean magnitude of each control channel for
// one tick, in microvolts.
type ChannelMagnitude [ChannelCount]float64

// Of returns the magnitude of channel c.
func (m ChannelMagnitude) Of(c Channel) float64 {
	return m[c]
}

// SignalStrength is the value logged per tick: the mean of the up and down
// channel magnitudes, regardless of which axis is driving.
func (m ChannelMagnitude) SignalStrength() float64 {
	return (m[ChannelUp] + m[ChannelDown]) / 2
}

// CalibrationProfile holds the per-channel noise floors and MVC scales. It is
// immutable once built.
type CalibrationProfile struct {
	noiseLevels     [ChannelCount]float64
	maxContractions [ChannelCount]float64
	completedAt     time.Time
}

// NewCalibrationProfile validates and builds a profile. Every channel must have
// a non-negative noise floor strictly below its maximum contraction, otherwise
// normalization would divide by zero or invert.
func NewCalibrationProfile(noise, max [ChannelCount]float64, completedAt time.Time) (*CalibrationProfile, error) {
	for i := 0; i < ChannelCount; i++ {
		if noise[i] < 0 || !(max[i] > noise[i]) {
			return nil, core.NewDegenerateProfileError(i, noise[i], max[i])
		}
	}
	return &CalibrationProfile{
		noiseLevels:     noise,
		maxContractions: max,
		completedAt:     completedAt,
	}, nil
}

// Noise returns the noise floor for channel c.
func (p *CalibrationProfile) Noise(c Channel) float64 { return p.noiseLevels[c] }

// Max returns the maximum voluntary contraction for channel c.
func (p *CalibrationProfile) Max(c Channel) float64 { return p.maxContractions[c] }

// NoiseLevels returns a copy of all noise floors.
func (p *CalibrationProfile) NoiseLevels() [ChannelCount]float64 { return p.noiseLevels }

// MaxContractions returns a copy of all MVC values.
func (p *CalibrationProfile) MaxContractions() [ChannelCount]float64 { return p.maxContractions }

// CompletedAt is the instant calibration finished; record timestamps count from here.
func (p *CalibrationProfile) CompletedAt() time.Time { return p.completedAt }
