package trial

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emgreach/domain/session"
	"emgreach/domain/task"
)

var canvas = task.Canvas{Width: 1920, Height: 1000}

func TestSequenceBalancedForAnySeed(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		seq := NewSequence(rand.New(rand.NewSource(seed)), 3)
		require.Len(t, seq, 24)
		counts := map[task.Direction]int{}
		for _, d := range seq {
			counts[d]++
		}
		assert.Len(t, counts, task.DirectionCount)
		for _, d := range task.Directions() {
			assert.Equal(t, 3, counts[d], "seed %d direction %s", seed, d)
		}
	}
}

func TestSequenceIsDeterministicPerSeed(t *testing.T) {
	a := NewSequence(rand.New(rand.NewSource(11)), 3)
	b := NewSequence(rand.New(rand.NewSource(11)), 3)
	assert.Equal(t, a, b)
}

func newActiveMachine(t *testing.T, seq Sequence, now time.Time) *Machine {
	t.Helper()
	m := NewMachine(canvas, 10, seq, 3*time.Second)
	out := m.Start()
	require.NotNil(t, out.Shown)
	assert.Equal(t, task.Shown, out.Shown.Visibility)
	require.NoError(t, m.Activate(now))
	return m
}

func TestStartShowsFirstTargetBeforeActivation(t *testing.T) {
	m := NewMachine(canvas, 10, Sequence{task.DirectionLeft, task.DirectionTop}, time.Second)
	out := m.Start()

	require.NotNil(t, out.Shown)
	assert.Equal(t, task.DirectionLeft, out.Shown.Direction)
	assert.Equal(t, session.StateCalibrating, m.State())
	assert.False(t, m.Cursor().Active)
	assert.Equal(t, "Successful Hits: 0/2", m.HitText())

	// Ticks before activation are ignored.
	assert.False(t, m.Tick(m.Current().Center, time.Now()).Hit)
	assert.Equal(t, 0, m.Hits())
}

func TestActivateOnlyFromCalibrating(t *testing.T) {
	now := time.Now()
	m := newActiveMachine(t, Sequence{task.DirectionTop}, now)
	assert.Error(t, m.Activate(now))
}

func TestCollisionCountsOncePerActivation(t *testing.T) {
	start := time.Unix(1000, 0)
	m := newActiveMachine(t, Sequence{task.DirectionTop, task.DirectionRight}, start)
	target := m.Current().Center

	hits := 0
	for i := 0; i < 10; i++ {
		if m.Tick(target, start.Add(time.Duration(i)*time.Millisecond)).Hit {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, m.Hits())
	assert.Equal(t, session.StateCooldown, m.State())
	assert.False(t, m.Cursor().Active)
	assert.Equal(t, "Successful Hits: 1/2", m.HitText())
}

func TestTouchingEdgesIsNotAHit(t *testing.T) {
	now := time.Unix(0, 0)
	m := newActiveMachine(t, Sequence{task.DirectionTop}, now)
	c := m.Current().Center

	assert.False(t, m.Tick(task.Point{X: c.X, Y: c.Y + 20}, now).Hit)
	assert.True(t, m.Tick(task.Point{X: c.X, Y: c.Y + 19.5}, now).Hit)
}

func TestCooldownResetsAndAdvances(t *testing.T) {
	start := time.Unix(1000, 0)
	m := newActiveMachine(t, Sequence{task.DirectionTop, task.DirectionLeft}, start)

	require.True(t, m.Tick(m.Current().Center, start).Hit)

	assert.False(t, m.Poll(start.Add(2999*time.Millisecond)).Changed())
	assert.Equal(t, session.StateCooldown, m.State())

	out := m.Poll(start.Add(3 * time.Second))
	assert.True(t, out.Reset)
	require.NotNil(t, out.Hidden)
	assert.Equal(t, task.DirectionTop, out.Hidden.Direction)
	assert.Equal(t, task.Hidden, out.Hidden.Visibility)
	require.NotNil(t, out.Shown)
	assert.Equal(t, task.DirectionLeft, out.Shown.Direction)

	assert.Equal(t, session.StateActive, m.State())
	assert.Equal(t, canvas.Center(), m.Cursor().Position)
	assert.True(t, m.Cursor().Active)
	assert.Equal(t, 1, m.TrialIndex())
	assert.Equal(t, task.Hidden, m.Targets()[task.DirectionTop].Visibility)

	// The fired transition does not repeat.
	assert.False(t, m.Poll(start.Add(10*time.Second)).Changed())
}

func TestLastHitFinishes(t *testing.T) {
	start := time.Unix(0, 0)
	m := newActiveMachine(t, Sequence{task.DirectionBottom}, start)

	require.True(t, m.Tick(m.Current().Center, start).Hit)
	out := m.Poll(start.Add(3 * time.Second))

	assert.True(t, out.Finished)
	assert.Nil(t, out.Shown)
	assert.Equal(t, session.StateFinished, m.State())
	assert.True(t, m.State().IsTerminal())
	assert.True(t, out.Reset)
	assert.Equal(t, canvas.Center(), m.Cursor().Position)
	assert.False(t, m.Cursor().Active, "the cursor stays frozen once the session is over")
	assert.Equal(t, 0, m.TrialIndex())
	assert.Equal(t, task.Hidden, m.Targets()[task.DirectionBottom].Visibility)
	assert.False(t, m.Tick(m.Current().Center, start.Add(4*time.Second)).Hit)
}

func TestFinishCancelsPendingCooldown(t *testing.T) {
	start := time.Unix(0, 0)
	m := newActiveMachine(t, Sequence{task.DirectionTop, task.DirectionLeft}, start)
	require.True(t, m.Tick(m.Current().Center, start).Hit)

	m.Finish()
	assert.False(t, m.Poll(start.Add(time.Minute)).Changed())
	assert.Equal(t, session.StateFinished, m.State())
	assert.False(t, m.Cursor().Active)
}
