package trigno

import (
	"bufio"
	"context"
	"encoding/binary"
	"math"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBase emulates the command and data ports of a base station.
type fakeBase struct {
	t        *testing.T
	cmdLn    net.Listener
	dataLn   net.Listener
	mu       sync.Mutex
	commands []string
	dataConn chan net.Conn
}

func newFakeBase(t *testing.T) *fakeBase {
	t.Helper()
	cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	dataLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	b := &fakeBase{t: t, cmdLn: cmdLn, dataLn: dataLn, dataConn: make(chan net.Conn, 1)}
	go b.serveCommands()
	go func() {
		conn, err := dataLn.Accept()
		if err == nil {
			b.dataConn <- conn
		}
	}()
	t.Cleanup(func() {
		cmdLn.Close()
		dataLn.Close()
	})
	return b
}

func (b *fakeBase) serveCommands() {
	conn, err := b.cmdLn.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	conn.Write([]byte("Delsys Trigno System Digital Protocol Version 3.6.0 \r\n\r\n"))

	r := bufio.NewReader(conn)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		b.mu.Lock()
		b.commands = append(b.commands, line)
		b.mu.Unlock()
		conn.Write([]byte("OK\r\n\r\n"))
	}
}

func (b *fakeBase) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commands...)
}

func (b *fakeBase) config(channels, perRead int) Config {
	return Config{
		Host:           "127.0.0.1",
		CommandPort:    b.cmdLn.Addr().(*net.TCPAddr).Port,
		DataPort:       b.dataLn.Addr().(*net.TCPAddr).Port,
		Channels:       channels,
		SamplesPerRead: perRead,
		ReadTimeout:    100 * time.Millisecond,
	}
}

// frames encodes interleaved samples where channel c of frame s is s*10+c.
func frames(from, count, channels int) []byte {
	buf := make([]byte, 0, count*channels*4)
	for s := from; s < from+count; s++ {
		for c := 0; c < channels; c++ {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(s*10+c)))
		}
	}
	return buf
}

func TestDeviceStreamsFrames(t *testing.T) {
	base := newFakeBase(t)
	dev := New(base.config(5, 4), nil)
	ctx := context.Background()

	require.NoError(t, dev.Start(ctx))
	data := <-base.dataConn
	defer data.Close()

	payload := frames(0, 6, 5)
	half := frames(6, 1, 5)
	_, err := data.Write(append(payload, half[:7]...))
	require.NoError(t, err)

	batch, err := dev.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 5, batch.Channels())
	require.Equal(t, 4, batch.SampleCount())
	assert.Equal(t, 0.0, batch.Samples[0][0])
	assert.Equal(t, 34.0, batch.Samples[4][3])

	batch, err = dev.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, batch.SampleCount())
	assert.Equal(t, 52.0, batch.Samples[2][1])

	batch, err = dev.Read(ctx)
	require.NoError(t, err)
	assert.True(t, batch.IsEmpty(), "a partial frame is not delivered")

	_, err = data.Write(half[7:])
	require.NoError(t, err)
	batch, err = dev.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, batch.SampleCount())
	assert.Equal(t, 64.0, batch.Samples[4][0])

	require.NoError(t, dev.Stop(ctx))
	assert.Eventually(t, func() bool {
		cmds := base.Commands()
		return len(cmds) == 2 && cmds[0] == "START" && cmds[1] == "STOP"
	}, time.Second, 10*time.Millisecond)
}

func TestReadBeforeStartFails(t *testing.T) {
	dev := New(DefaultConfig("127.0.0.1"), nil)
	_, err := dev.Read(context.Background())
	assert.Error(t, err)
	assert.NoError(t, dev.Stop(context.Background()))
}

func TestStartFailsWithoutBaseStation(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	cfg := DefaultConfig("127.0.0.1")
	cfg.CommandPort = port
	err = New(cfg, nil).Start(context.Background())
	assert.Error(t, err)
}
