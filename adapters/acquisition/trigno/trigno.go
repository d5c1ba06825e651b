// Package trigno streams EMG samples from a Delsys Trigno base station over
// its TCP command and data ports.
package trigno

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"emgreach/domain/emg"
	"emgreach/internal"
	apperrors "emgreach/internal/errors"
)

const (
	DefaultCommandPort = 50040
	DefaultDataPort    = 50043
	DefaultChannels    = 16

	bytesPerSample = 4
	dialTimeout    = 5 * time.Second
	commandTimeout = 2 * time.Second
)

// Config describes the base station connection.
type Config struct {
	Host        string
	CommandPort int
	DataPort    int
	// Channels is the number of interleaved float32 channels on the data port.
	Channels int
	// SamplesPerRead caps the frames returned by one Read.
	SamplesPerRead int
	// ReadTimeout bounds how long Read waits for data before returning an
	// empty batch.
	ReadTimeout time.Duration
}

// DefaultConfig returns the stock base station layout on host.
func DefaultConfig(host string) Config {
	return Config{
		Host:           host,
		CommandPort:    DefaultCommandPort,
		DataPort:       DefaultDataPort,
		Channels:       DefaultChannels,
		SamplesPerRead: 850,
		ReadTimeout:    5 * time.Millisecond,
	}
}

// Device implements ports.AcquisitionPort for a Trigno base station.
type Device struct {
	cfg    Config
	logger *internal.Logger

	mu      sync.Mutex
	cmd     net.Conn
	cmdRead *bufio.Reader
	data    net.Conn
	pending []byte
	chunk   []byte
}

// New creates a Trigno device
func New(cfg Config, logger *internal.Logger) *Device {
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}
	if cfg.SamplesPerRead <= 0 {
		cfg.SamplesPerRead = 850
	}
	return &Device{
		cfg:    cfg,
		logger: internal.OrDefault(logger).With("trigno"),
		chunk:  make([]byte, cfg.Channels*bytesPerSample*cfg.SamplesPerRead),
	}
}

func (d *Device) frameSize() int {
	return d.cfg.Channels * bytesPerSample
}

// Start connects both ports and sends START.
func (d *Device) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd != nil {
		return nil
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	cmd, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.CommandPort)))
	if err != nil {
		return apperrors.DeviceError("trigno", err)
	}
	d.cmd = cmd
	d.cmdRead = bufio.NewReader(cmd)

	if banner, err := d.readReply(); err == nil {
		d.logger.Debug("base station: %s", banner)
	}

	data, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(d.cfg.Host, strconv.Itoa(d.cfg.DataPort)))
	if err != nil {
		d.closeLocked()
		return apperrors.DeviceError("trigno", err)
	}
	d.data = data
	d.pending = d.pending[:0]

	reply, err := d.command("START")
	if err != nil {
		d.closeLocked()
		return apperrors.DeviceError("trigno", err)
	}
	d.logger.Info("streaming %d channels from %s (%s)", d.cfg.Channels, d.cfg.Host, reply)
	return nil
}

// Read returns the complete frames received within the read timeout, up to
// SamplesPerRead. A partial trailing frame is kept for the next call.
func (d *Device) Read(ctx context.Context) (emg.ChannelBatch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.data == nil {
		return emg.ChannelBatch{}, apperrors.DeviceError("trigno", errors.New("not started"))
	}

	deadline := time.Now().Add(d.cfg.ReadTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := d.data.SetReadDeadline(deadline); err != nil {
		return emg.ChannelBatch{}, apperrors.DeviceError("trigno", err)
	}

	want := d.frameSize() * d.cfg.SamplesPerRead
	for len(d.pending) < want {
		n, err := d.data.Read(d.chunk[:want-len(d.pending)])
		d.pending = append(d.pending, d.chunk[:n]...)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				break
			}
			return emg.ChannelBatch{}, apperrors.DeviceError("trigno", err)
		}
	}

	return d.takeFrames(), nil
}

// takeFrames deinterleaves every complete frame in pending into a
// channel-major batch.
func (d *Device) takeFrames() emg.ChannelBatch {
	frames := len(d.pending) / d.frameSize()
	if frames > d.cfg.SamplesPerRead {
		frames = d.cfg.SamplesPerRead
	}
	if frames == 0 {
		return emg.ChannelBatch{}
	}

	batch := emg.NewChannelBatch(d.cfg.Channels, frames)
	off := 0
	for s := 0; s < frames; s++ {
		for c := 0; c < d.cfg.Channels; c++ {
			bits := binary.LittleEndian.Uint32(d.pending[off:])
			batch.Samples[c][s] = float64(math.Float32frombits(bits))
			off += bytesPerSample
		}
	}
	d.pending = append(d.pending[:0], d.pending[off:]...)
	return batch
}

// Stop sends STOP and closes both connections.
func (d *Device) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cmd == nil {
		return nil
	}
	_, err := d.command("STOP")
	d.closeLocked()
	if err != nil {
		return apperrors.DeviceError("trigno", err)
	}
	d.logger.Info("stopped streaming from %s", d.cfg.Host)
	return nil
}

func (d *Device) closeLocked() {
	if d.data != nil {
		d.data.Close()
		d.data = nil
	}
	if d.cmd != nil {
		d.cmd.Close()
		d.cmd = nil
		d.cmdRead = nil
	}
}

// command sends a command terminated by a blank line and returns the reply.
func (d *Device) command(name string) (string, error) {
	if err := d.cmd.SetWriteDeadline(time.Now().Add(commandTimeout)); err != nil {
		return "", err
	}
	if _, err := d.cmd.Write([]byte(name + "\r\n\r\n")); err != nil {
		return "", fmt.Errorf("send %s: %w", name, err)
	}
	reply, err := d.readReply()
	if err != nil {
		return "", fmt.Errorf("%s reply: %w", name, err)
	}
	return reply, nil
}

// readReply reads lines up to the blank line that ends a response.
func (d *Device) readReply() (string, error) {
	if err := d.cmd.SetReadDeadline(time.Now().Add(commandTimeout)); err != nil {
		return "", err
	}
	var lines []string
	for {
		line, err := d.cmdRead.ReadString('\n')
		line = strings.TrimRight(line, "\r\n")
		if err != nil {
			return strings.Join(lines, " "), err
		}
		if line == "" {
			if len(lines) == 0 {
				continue
			}
			return strings.Join(lines, " "), nil
		}
		lines = append(lines, line)
	}
}
