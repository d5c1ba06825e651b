package ports

import (
	"context"

	"emgreach/domain/emg"
)

// AcquisitionPort is the EMG device. Read must not block indefinitely: when no
// samples are ready it returns an empty batch, which the session skips.
type AcquisitionPort interface {
	Start(ctx context.Context) error
	Read(ctx context.Context) (emg.ChannelBatch, error)
	Stop(ctx context.Context) error
}
