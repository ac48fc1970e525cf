package ctl

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkpad/ctlapi"
	"inkpad/internal/abortline"
	"inkpad/printer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServer(t *testing.T, password string) (*Server, *printer.Driver, *abortline.Line) {
	t.Helper()
	line := &abortline.Line{}
	p := printer.New(nil, printer.Config{Echoes: 3})
	driver := printer.NewDriver(p, line.Sample, testLogger())

	s, err := New(ServerConfig{
		Addr:              "127.0.0.1:0",
		Password:          password,
		ConnectionTimeout: 5 * time.Second,
	}, driver, line, "test", testLogger())
	require.NoError(t, err)
	require.NoError(t, s.Start())
	t.Cleanup(s.Close)
	return s, driver, line
}

func TestServerPing(t *testing.T) {
	s, _, _ := startServer(t, "")
	c := ctlapi.New(s.Addr())

	resp, err := c.Ping()
	require.NoError(t, err)
	assert.Equal(t, "inkpad", resp.Server)
	assert.Equal(t, "test", resp.Version)
}

func TestServerStatus(t *testing.T) {
	s, driver, _ := startServer(t, "")
	for i := 0; i < 8; i++ {
		driver.NextReport()
	}

	resp, err := ctlapi.New(s.Addr()).Status()
	require.NoError(t, err)
	assert.Equal(t, "sync-controller", resp.Phase)
	assert.EqualValues(t, 8, resp.Polls)
	assert.Zero(t, resp.Progress)
}

func TestServerAbortTriggersLine(t *testing.T) {
	s, _, line := startServer(t, "")

	resp, err := ctlapi.New(s.Addr()).Abort()
	require.NoError(t, err)
	assert.Equal(t, "sync-controller", resp.Phase)

	assert.True(t, line.Sample(), "abort trigger must be latched")
	assert.False(t, line.Sample(), "trigger is one-shot")
}

func TestServerRestart(t *testing.T) {
	s, driver, _ := startServer(t, "")
	// Push the sequencer out of the pairing phase first.
	for driver.Snapshot().Phase == printer.PhaseSyncController {
		driver.NextReport()
	}

	resp, err := ctlapi.New(s.Addr()).Restart()
	require.NoError(t, err)
	assert.Equal(t, "sync-controller", resp.Phase)
	assert.Equal(t, printer.PhaseSyncController, driver.Snapshot().Phase)
}

func TestServerUnknownCommand(t *testing.T) {
	s, _, _ := startServer(t, "")

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("frobnicate\x00"))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	var problem ctlapi.Error
	require.NoError(t, json.Unmarshal(data, &problem))
	assert.Equal(t, 404, problem.Status)
}

func TestServerEmptyCommand(t *testing.T) {
	s, _, _ := startServer(t, "")

	conn, err := net.Dial("tcp", s.Addr())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("\x00"))
	require.NoError(t, err)

	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	var problem ctlapi.Error
	require.NoError(t, json.Unmarshal(data, &problem))
	assert.Equal(t, 400, problem.Status)
}

func TestServerAuthenticatedRoundTrip(t *testing.T) {
	s, _, _ := startServer(t, "hunter2")

	resp, err := ctlapi.NewWithPassword(s.Addr(), "hunter2").Ping()
	require.NoError(t, err)
	assert.Equal(t, "inkpad", resp.Server)
}

func TestServerRejectsWrongPassword(t *testing.T) {
	s, _, _ := startServer(t, "hunter2")

	_, err := ctlapi.NewWithPassword(s.Addr(), "wrong").Ping()
	require.Error(t, err)
	var problem *ctlapi.Error
	if assert.ErrorAs(t, err, &problem) {
		assert.Equal(t, 401, problem.Status)
	}
}

func TestServerRejectsPlaintextWhenPasswordSet(t *testing.T) {
	s, _, _ := startServer(t, "hunter2")

	_, err := ctlapi.New(s.Addr()).Ping()
	require.Error(t, err)
	var problem *ctlapi.Error
	require.ErrorAs(t, err, &problem)
	assert.Equal(t, 401, problem.Status)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil))
	assert.Equal(t, 404, WrapError(ErrNotFound("x")).Status)
	assert.Equal(t, 500, WrapError(io.ErrUnexpectedEOF).Status)
}
