// Package serialdev reads framed EMG samples from a USB serial acquisition
// board.
package serialdev

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/tarm/serial"

	"emgreach/domain/emg"
	"emgreach/internal"
	"emgreach/internal/errors"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string
	Baud   int
	// ReadTimeout bounds a single port read; an expired read yields no data.
	ReadTimeout time.Duration
}

// OpenFunc opens the link. Tests replace it with an in-memory port.
type OpenFunc func(cfg Config) (io.ReadWriteCloser, error)

// OpenNative opens a native serial port
func OpenNative(cfg Config) (io.ReadWriteCloser, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}
	return port, nil
}

// Device implements ports.AcquisitionPort over a framed serial link.
type Device struct {
	cfg    Config
	open   OpenFunc
	logger *internal.Logger

	mu      sync.Mutex
	port    io.ReadWriteCloser
	decoder Decoder
	chunk   []byte
}

// New creates a serial device. A nil open uses the native port.
func New(cfg Config, open OpenFunc, logger *internal.Logger) *Device {
	if open == nil {
		open = OpenNative
	}
	return &Device{
		cfg:    cfg,
		open:   open,
		logger: internal.OrDefault(logger).With("serial"),
		chunk:  make([]byte, 4096),
	}
}

func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port != nil {
		return nil
	}
	port, err := d.open(d.cfg)
	if err != nil {
		return errors.DeviceError("serial", err)
	}
	d.port = port
	d.decoder = Decoder{}
	d.logger.Info("connected to %s at %d baud", d.cfg.Device, d.cfg.Baud)
	return nil
}

// Read returns the next buffered frame, reading from the port at most once.
// If no complete frame is available the batch is empty.
func (d *Device) Read(ctx context.Context) (emg.ChannelBatch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.port == nil {
		return emg.ChannelBatch{}, errors.DeviceError("serial", fmt.Errorf("not started"))
	}
	if batch, ok := d.decoder.Next(); ok {
		return batch, nil
	}
	if err := ctx.Err(); err != nil {
		return emg.ChannelBatch{}, err
	}

	n, err := d.port.Read(d.chunk)
	if n > 0 {
		d.decoder.Feed(d.chunk[:n])
	}
	if err != nil && err != io.EOF {
		return emg.ChannelBatch{}, errors.DeviceError("serial", err)
	}

	before := d.decoder.Dropped()
	batch, ok := d.decoder.Next()
	if dropped := d.decoder.Dropped() - before; dropped > 0 {
		d.logger.Debug("resynchronized, dropped %d bytes", dropped)
	}
	if !ok {
		return emg.ChannelBatch{}, nil
	}
	return batch, nil
}

func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.port == nil {
		return nil
	}
	err := d.port.Close()
	d.port = nil
	if err != nil {
		return errors.DeviceError("serial", err)
	}
	d.logger.Info("disconnected from %s", d.cfg.Device)
	return nil
}
