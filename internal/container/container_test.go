package container

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emgreach/adapters/acquisition/serialdev"
	"emgreach/adapters/acquisition/simulated"
	"emgreach/adapters/acquisition/trigno"
	"emgreach/adapters/viewer"
	"emgreach/domain/core"
	"emgreach/domain/session"
	"emgreach/domain/task"
	"emgreach/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Export.OutputDir = t.TempDir()
	cfg.Export.Open = false
	cfg.Database.URL = filepath.Join(t.TempDir(), "sessions.db")
	cfg.Viewer.Enabled = false
	return cfg
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)
}

func TestInitSelectsDeviceByKind(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		kind string
		want interface{}
		sim  bool
	}{
		{config.DeviceSimulated, &simulated.Device{}, true},
		{config.DeviceTrigno, &trigno.Device{}, false},
		{config.DeviceSerial, &serialdev.Device{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.kind, func(t *testing.T) {
			cfg := testConfig(t)
			cfg.Database.URL = ""
			cfg.Device.Kind = tc.kind
			c, err := New(cfg, nil)
			require.NoError(t, err)
			require.NoError(t, c.Init(ctx))
			defer c.Shutdown(ctx)

			assert.IsType(t, tc.want, c.Device)
			assert.Equal(t, tc.sim, c.Simulator != nil)
		})
	}

	cfg := testConfig(t)
	cfg.Device.Kind = "bluetooth"
	c, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Error(t, c.Init(ctx))
}

func TestInitPresentation(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database.URL = ""

	c, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	assert.IsType(t, &viewer.Console{}, c.Renderer)
	assert.Nil(t, c.Hub)
	assert.Nil(t, c.Server)
	assert.Nil(t, c.SessionDeps().Viewer)

	cfg.Viewer.Enabled = true
	cfg.Export.Open = true
	c, err = New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	defer c.Shutdown(ctx)
	assert.Same(t, c.Hub, c.Renderer)
	assert.NotNil(t, c.Server)

	deps := c.SessionDeps()
	assert.Same(t, c.Hub, deps.Prompter)
	assert.NotNil(t, deps.Viewer)
	assert.Equal(t, c.Device, deps.Device)
}

func TestViewerCursorIntervalReachesHub(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database.URL = ""
	cfg.Viewer.Enabled = true
	cfg.Viewer.CursorInterval = 0

	c, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	defer c.Shutdown(ctx)

	ts := httptest.NewServer(c.Server.Handler())
	defer ts.Close()
	resp, err := http.Get(ts.URL + "/api/events")
	require.NoError(t, err)
	defer resp.Body.Close()

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		for lines.Scan() {
			if line := strings.TrimSpace(lines.Text()); strings.HasPrefix(line, "event:") {
				return strings.TrimSpace(strings.TrimPrefix(line, "event:"))
			}
		}
		return ""
	}
	require.Equal(t, "snapshot", next())
	require.Eventually(t, func() bool { return c.Hub.ClientCount() == 1 }, time.Second, time.Millisecond)

	cursor := task.Cursor{Radius: cfg.Task.CursorRadius, Active: true}
	c.Hub.CursorMoved(cursor)
	cursor.Position.X = 1
	c.Hub.CursorMoved(cursor)
	assert.Equal(t, viewer.EventCursor, next())
	assert.Equal(t, viewer.EventCursor, next(), "back-to-back moves stream when the interval is zero")
}

func TestSinkFansOutToFilesAndStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	c, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	require.NotNil(t, c.Store)

	ended := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	exp := &session.Export{
		SessionID: core.NewSessionID(),
		Name:      core.NewExportName(ended),
		Header:    session.Header,
		Records:   []session.Record{{Trial: 0, SignalStrength: 0.5, X: 960, Y: 500}},
		Hits:      1,
		StartedAt: core.NewTimestamp(ended.Add(-time.Minute)),
		EndedAt:   core.NewTimestamp(ended),
	}
	location, err := c.Sink.Save(ctx, exp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.Export.OutputDir, "emg_data_20240506_070809.csv"), location)
	assert.FileExists(t, filepath.Join(cfg.Export.OutputDir, "emg_data_20240506_070809.xlsx"))

	listed, err := c.Store.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, exp.SessionID, listed[0].ID)
	require.NoError(t, c.Shutdown(ctx))
}

func TestUnreachableStoreIsLeftOut(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Database.URL = filepath.Join(t.TempDir(), "missing", "dir", "sessions.db")

	c, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, c.Init(ctx))
	assert.Nil(t, c.Store)
	assert.NotNil(t, c.Sink)
}

func TestOpenStoreNeedsURL(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = ""
	c, err := New(cfg, nil)
	require.NoError(t, err)
	_, err = c.OpenStore(context.Background())
	assert.Error(t, err)
}

func TestFileSinks(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export.Formats = []string{config.FormatXLSX}
	sinks := FileSinks(cfg)
	require.Len(t, sinks, 1)
	assert.Equal(t, "xlsx", sinks[0].Name())
}
