package ctlapi

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mockClient(t *testing.T, responses map[string]string) *Client {
	t.Helper()
	return WithTransport(NewMockTransport(func(command string) (string, error) {
		resp, ok := responses[command]
		if !ok {
			return "", fmt.Errorf("unexpected command %q", command)
		}
		return resp, nil
	}))
}

func TestClientPing(t *testing.T) {
	c := mockClient(t, map[string]string{
		"ping": `{"server":"inkpad","version":"1.2.3"}`,
	})
	resp, err := c.Ping()
	require.NoError(t, err)
	assert.Equal(t, "inkpad", resp.Server)
	assert.Equal(t, "1.2.3", resp.Version)
}

func TestClientStatus(t *testing.T) {
	c := mockClient(t, map[string]string{
		"status": `{"phase":"draw","cursorX":12,"cursorY":3,"sweep":1,"command":668,"progress":0.028,"polls":9001,"inked":42}`,
	})
	resp, err := c.Status()
	require.NoError(t, err)
	assert.Equal(t, "draw", resp.Phase)
	assert.Equal(t, 12, resp.CursorX)
	assert.Equal(t, 3, resp.CursorY)
	assert.Equal(t, 1, resp.Sweep)
	assert.InDelta(t, 0.028, resp.Progress, 1e-9)
	assert.EqualValues(t, 9001, resp.Polls)
	assert.Equal(t, 42, resp.Inked)
}

func TestClientAbortAndRestart(t *testing.T) {
	c := mockClient(t, map[string]string{
		"abort":   `{"phase":"draw"}`,
		"restart": `{"phase":"sync-controller"}`,
	})

	abort, err := c.Abort()
	require.NoError(t, err)
	assert.Equal(t, "draw", abort.Phase)

	restart, err := c.Restart()
	require.NoError(t, err)
	assert.Equal(t, "sync-controller", restart.Phase)
}

func TestClientProblemResponse(t *testing.T) {
	c := mockClient(t, map[string]string{
		"status": `{"status":404,"title":"Not Found","detail":"unknown command: status"}`,
	})
	_, err := c.Status()
	require.Error(t, err)

	var problem *Error
	require.True(t, errors.As(err, &problem))
	assert.Equal(t, 404, problem.Status)
	assert.Contains(t, problem.Error(), "Not Found")
}

func TestClientTransportError(t *testing.T) {
	c := WithTransport(NewMockTransport(func(string) (string, error) {
		return "", errors.New("connection refused")
	}))
	_, err := c.Ping()
	assert.ErrorContains(t, err, "connection refused")
}

func TestClientEmptyAndMalformedResponse(t *testing.T) {
	c := mockClient(t, map[string]string{"ping": ""})
	_, err := c.Ping()
	assert.ErrorContains(t, err, "empty response")

	c = mockClient(t, map[string]string{"ping": "not json"})
	_, err = c.Ping()
	assert.ErrorContains(t, err, "decode")
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "unknown error", Error{}.Error())
	assert.Equal(t, "Bad Request: nope", Error{Title: "Bad Request", Detail: "nope"}.Error())
	assert.Equal(t, "401 Unauthorized: invalid password",
		Error{Status: 401, Title: "Unauthorized", Detail: "invalid password"}.Error())
}

func TestDecodeError(t *testing.T) {
	assert.Nil(t, decodeError(`{"server":"inkpad"}`))
	assert.Nil(t, decodeError("garbage"))

	problem := decodeError(`{"status":500,"title":"Internal Server Error","detail":"boom"}`)
	require.NotNil(t, problem)
	assert.Equal(t, 500, problem.Status)
}
