package export

import (
	"context"
	"errors"

	"emgreach/domain/core"
	"emgreach/domain/session"
	"emgreach/internal"
	"emgreach/ports"
)

// MultiSink saves to every sink in order. A failing sink is logged and
// skipped; Save fails only when no sink succeeded. The returned location is
// the first successful one.
type MultiSink struct {
	sinks  []ports.SessionSinkPort
	logger *internal.Logger
}

// NewMultiSink creates a fan-out sink
func NewMultiSink(logger *internal.Logger, sinks ...ports.SessionSinkPort) *MultiSink {
	return &MultiSink{sinks: sinks, logger: internal.OrDefault(logger).With("export")}
}

func (m *MultiSink) Name() string { return "multi" }

func (m *MultiSink) Save(ctx context.Context, export *session.Export) (string, error) {
	if len(m.sinks) == 0 {
		return "", core.NewPersistenceError(m.Name(), errors.New("no sinks configured"))
	}

	var (
		location string
		errs     []error
	)
	for _, sink := range m.sinks {
		loc, err := sink.Save(ctx, export)
		if err != nil {
			m.logger.Error("%s sink: %v", sink.Name(), err)
			errs = append(errs, core.NewPersistenceError(sink.Name(), err))
			continue
		}
		m.logger.Info("saved %s to %s", export.Name, loc)
		if location == "" {
			location = loc
		}
	}

	if location == "" {
		return "", errors.Join(errs...)
	}
	return location, nil
}
