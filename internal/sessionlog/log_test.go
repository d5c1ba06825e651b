package sessionlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"emgreach/domain/core"
	"emgreach/domain/session"
)

type MockSink struct {
	mock.Mock
}

func (m *MockSink) Name() string {
	return "mock"
}

func (m *MockSink) Save(ctx context.Context, export *session.Export) (string, error) {
	args := m.Called(ctx, export)
	return args.String(0), args.Error(1)
}

func meta() session.Export {
	now := time.Unix(1700000000, 0)
	return session.Export{
		SessionID: core.NewSessionID(),
		Name:      core.NewExportName(now),
		StartedAt: core.NewTimestamp(now),
	}
}

func TestFlushEmptyLogWritesHeaderOnly(t *testing.T) {
	sink := &MockSink{}
	sink.On("Save", mock.Anything, mock.MatchedBy(func(e *session.Export) bool {
		return len(e.Records) == 0 && assert.ObjectsAreEqual(session.Header, e.Header)
	})).Return("out.csv", nil).Once()

	l := New(nil)
	loc, err := l.Flush(context.Background(), sink, meta())
	require.NoError(t, err)
	assert.Equal(t, "out.csv", loc)
	sink.AssertExpectations(t)
}

func TestFlushIsIdempotent(t *testing.T) {
	sink := &MockSink{}
	sink.On("Save", mock.Anything, mock.Anything).Return("out.csv", nil).Once()

	l := New(nil)
	l.Append(session.Record{Trial: 0, SignalStrength: 1.5, X: 960, Y: 500})
	l.Append(session.Record{Trial: 0, SignalStrength: 1.7, X: 960, Y: 350})

	for i := 0; i < 3; i++ {
		loc, err := l.Flush(context.Background(), sink, meta())
		require.NoError(t, err)
		assert.Equal(t, "out.csv", loc)
	}
	sink.AssertNumberOfCalls(t, "Save", 1)

	saved := sink.Calls[0].Arguments.Get(1).(*session.Export)
	assert.Len(t, saved.Records, 2)
	assert.Equal(t, 350.0, saved.Records[1].Y)
}

func TestFlushFailureIsPersistenceError(t *testing.T) {
	sink := &MockSink{}
	sink.On("Save", mock.Anything, mock.Anything).Return("", errors.New("disk full"))

	l := New(nil)
	l.Append(session.Record{Trial: 1})
	_, err := l.Flush(context.Background(), sink, meta())

	assert.ErrorIs(t, err, core.ErrPersistenceFailure)
	assert.Contains(t, err.Error(), "disk full")

	// A failed flush leaves the log open for another attempt.
	retry := &MockSink{}
	retry.On("Save", mock.Anything, mock.Anything).Return("out.csv", nil).Once()
	loc, err := l.Flush(context.Background(), retry, meta())
	require.NoError(t, err)
	assert.Equal(t, "out.csv", loc)
	retry.AssertExpectations(t)
}

func TestRecordsReturnsCopy(t *testing.T) {
	l := New(nil)
	l.Append(session.Record{Trial: 2, X: 1})

	recs := l.Records()
	recs[0].X = 99
	assert.Equal(t, 1.0, l.Records()[0].X)
	assert.Len(t, l.Records(), 1)
}
