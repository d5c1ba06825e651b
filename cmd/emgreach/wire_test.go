package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emgreach/adapters/sqlstore"
	"emgreach/domain/core"
	"emgreach/domain/session"
	"emgreach/internal/config"
	"emgreach/internal/errors"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Export.OutputDir = t.TempDir()
	cfg.Export.Open = false
	cfg.Database.URL = filepath.Join(t.TempDir(), "sessions.db")
	return cfg
}

func TestRunOptionsOverrideConfig(t *testing.T) {
	cmd := newRunCmd()
	require.NoError(t, cmd.Flags().Parse([]string{"--device", "TRIGNO", "--repetitions", "1", "--no-open", "--headless"}))

	var opts runOptions
	opts.device, _ = cmd.Flags().GetString("device")
	opts.repetitions, _ = cmd.Flags().GetInt("repetitions")
	opts.noOpen, _ = cmd.Flags().GetBool("no-open")
	opts.headless, _ = cmd.Flags().GetBool("headless")

	cfg := config.Default()
	require.NoError(t, opts.apply(cmd, cfg))
	assert.Equal(t, config.DeviceTrigno, cfg.Device.Kind)
	assert.Equal(t, 1, cfg.Task.Repetitions)
	assert.False(t, cfg.Export.Open)
	assert.False(t, cfg.Viewer.Enabled)
	assert.Equal(t, int64(0), cfg.Task.Seed)

	bad := newRunCmd()
	require.NoError(t, bad.Flags().Parse([]string{"--repetitions", "0"}))
	assert.Error(t, runOptions{}.apply(bad, config.Default()))
}

func TestListAndExportStoredSession(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := sqlstore.Open(ctx, cfg.Database.Driver, cfg.Database.URL, nil)
	require.NoError(t, err)
	ended := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	exp := &session.Export{
		SessionID: core.NewSessionID(),
		Name:      core.NewExportName(ended),
		Header:    session.Header,
		Records:   []session.Record{{Trial: 2, SignalStrength: 1.25, X: 400, Y: 300}},
		Hits:      24,
		StartedAt: core.NewTimestamp(ended.Add(-90 * time.Second)),
		EndedAt:   core.NewTimestamp(ended),
	}
	_, err = store.Save(ctx, exp)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	var out bytes.Buffer
	require.NoError(t, listSessions(ctx, &out, cfg, 5, nil))
	assert.Contains(t, out.String(), exp.SessionID.String())
	assert.Contains(t, out.String(), "emg_data_20240102_030405")

	cfg.Export.Formats = []string{config.FormatCSV}
	out.Reset()
	require.NoError(t, exportSession(ctx, &out, cfg, exp.SessionID.String(), nil))
	path := filepath.Join(cfg.Export.OutputDir, "emg_data_20240102_030405.csv")
	assert.Contains(t, out.String(), "csv: "+path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Trial,Timestamp,Signal Strength,X Position,Y Position")

	assert.Error(t, exportSession(ctx, &out, cfg, "  ", nil))
	assert.Error(t, exportSession(ctx, &out, cfg, core.NewSessionID().String(), nil))
}

func TestStoreCommandsNeedDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = ""
	var out bytes.Buffer
	assert.Error(t, listSessions(context.Background(), &out, cfg, 5, nil))
}

func TestRunSessionHeadlessStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.URL = ""
	cfg.Viewer.Enabled = false
	cfg.Calibration.RestDuration = 20 * time.Millisecond
	cfg.Calibration.MVCSettle = time.Millisecond
	cfg.Calibration.MVCDuration = 10 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	summary, err := runSession(ctx, cfg, runOptions{}, nil)
	assert.Error(t, err)
	assert.Nil(t, summary)

	entries, err := os.ReadDir(cfg.Export.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "a cancelled session must not export")
}

func TestReportErrorExitStatus(t *testing.T) {
	var out bytes.Buffer
	assert.Equal(t, 2, reportError(&out, errors.ConfigInvalid("TARGET_REPETITIONS must be at least 1")))
	assert.Equal(t, "CONFIG_INVALID: TARGET_REPETITIONS must be at least 1\n", out.String())

	out.Reset()
	bad := fmt.Errorf("export: %w", errors.InvalidInput("session id is empty"))
	assert.Equal(t, 2, reportError(&out, bad))
	assert.True(t, strings.HasPrefix(out.String(), "INVALID_INPUT: "))

	out.Reset()
	assert.Equal(t, 1, reportError(&out, errors.DeviceError("read", context.Canceled)))
	assert.Equal(t, 1, reportError(&out, context.Canceled))
	assert.Contains(t, out.String(), "context canceled")
}
