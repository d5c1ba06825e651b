package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"emgreach/domain/emg"
	"emgreach/internal/signal"
)

func TestBatchOfReducesToMagnitudes(t *testing.T) {
	mag, err := signal.NewReducer().Reduce(BatchOf(emg.ChannelMagnitude{3, 5, 7, 9}, 8))
	assert.NoError(t, err)
	assert.InDelta(t, 3, mag[emg.ChannelUp], 1e-9)
	assert.InDelta(t, 5, mag[emg.ChannelDown], 1e-9)
	assert.InDelta(t, 7, mag[emg.ChannelLeft], 1e-9)
	assert.InDelta(t, 9, mag[emg.ChannelRight], 1e-9)
}

func TestScriptedDeviceAdvancesClock(t *testing.T) {
	start := time.Unix(0, 0)
	clock := NewFakeClock(start)
	dev := NewScriptedDevice(clock, 10*time.Millisecond, Empty())

	for i := 0; i < 5; i++ {
		batch, err := dev.Read(context.Background())
		assert.NoError(t, err)
		assert.True(t, batch.IsEmpty())
	}
	assert.Equal(t, 5, dev.Reads())
	assert.Equal(t, start.Add(50*time.Millisecond), clock.Now())
}
