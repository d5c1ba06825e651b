// Package sessionlog accumulates per-tick session records and hands them to a
// persistence sink once the session ends.
package sessionlog

import (
	"context"
	"sync"

	"emgreach/domain/core"
	"emgreach/domain/session"
	"emgreach/internal"
	"emgreach/ports"
)

// Log is an append-only record list. Records are written by the tick loop and
// may be read concurrently by the viewer.
type Log struct {
	mu       sync.RWMutex
	records  []session.Record
	flushed  bool
	location string
	logger   *internal.Logger
}

// New creates an empty log
func New(logger *internal.Logger) *Log {
	return &Log{
		records: make([]session.Record, 0, 4096),
		logger:  internal.OrDefault(logger).With("sessionlog"),
	}
}

// Append adds one tick's record.
func (l *Log) Append(rec session.Record) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

// Records returns a copy of every record in append order.
func (l *Log) Records() []session.Record {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]session.Record, len(l.records))
	copy(out, l.records)
	return out
}

// Flush hands the header and every record to sink, using meta for the session
// identity and calibration context. An empty log still produces a header-only
// export. Once a flush succeeds, later calls return the same location without
// saving again.
func (l *Log) Flush(ctx context.Context, sink ports.SessionSinkPort, meta session.Export) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.flushed {
		l.logger.Debug("flush already done, location %s", l.location)
		return l.location, nil
	}

	export := meta
	export.Header = append([]string(nil), session.Header...)
	export.Records = make([]session.Record, len(l.records))
	copy(export.Records, l.records)

	location, err := sink.Save(ctx, &export)
	if err != nil {
		return "", core.NewPersistenceError(sink.Name(), err)
	}

	l.flushed = true
	l.location = location
	l.logger.Info("flushed %d records to %s", len(export.Records), location)
	return location, nil
}
