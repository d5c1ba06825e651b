package emg

import (
	"testing"
	"time"

	"emgreach/domain/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCalibrationProfile(t *testing.T) {
	now := time.Unix(10, 0)

	profile, err := NewCalibrationProfile([4]float64{1, 1, 1, 1}, [4]float64{2, 2, 2, 2}, now)
	require.NoError(t, err)
	assert.Equal(t, 1.0, profile.Noise(ChannelLeft))
	assert.Equal(t, 2.0, profile.Max(ChannelRight))
	assert.Equal(t, now, profile.CompletedAt())

	_, err = NewCalibrationProfile([4]float64{1, 1, 1, 1}, [4]float64{2, 1, 2, 2}, now)
	assert.ErrorIs(t, err, core.ErrDegenerateProfile)
	assert.True(t, core.IsCalibrationError(err))

	_, err = NewCalibrationProfile([4]float64{1, 1, 3, 1}, [4]float64{2, 2, 2, 2}, now)
	assert.ErrorIs(t, err, core.ErrDegenerateProfile)
}

func TestSignalStrength(t *testing.T) {
	m := ChannelMagnitude{2, 4, 100, 100}
	assert.Equal(t, 3.0, m.SignalStrength())
}

func TestChannelBatchShape(t *testing.T) {
	b := NewChannelBatch(16, 0)
	assert.Equal(t, 16, b.Channels())
	assert.True(t, b.IsEmpty())

	b = NewChannelBatch(16, 5)
	assert.Equal(t, 5, b.SampleCount())
	assert.False(t, b.IsEmpty())
	assert.True(t, ChannelBatch{}.IsEmpty())
}
