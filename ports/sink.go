package ports

import (
	"context"

	"emgreach/domain/session"
)

// SessionSinkPort persists a finished session. It returns a location string
// (file path, row id) that a viewer may open.
type SessionSinkPort interface {
	Name() string
	Save(ctx context.Context, export *session.Export) (string, error)
}

// ViewerPort opens a saved export for the operator once the session ends.
type ViewerPort interface {
	Open(ctx context.Context, location string) error
}
