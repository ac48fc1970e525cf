package ctlapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client is the high-level control API client: command formatting, response
// parsing, problem-JSON error mapping.
type Client struct{ transport *Transport }

// New constructs a client for a plaintext control endpoint.
func New(addr string) *Client { return &Client{transport: NewTransport(addr)} }

// NewWithPassword constructs a client that authenticates with the given
// password.
func NewWithPassword(addr, password string) *Client {
	return &Client{transport: NewTransportWithPassword(addr, password)}
}

// WithTransport constructs a Client over a custom Transport, mostly for
// tests.
func WithTransport(t *Transport) *Client { return &Client{transport: t} }

// Ping returns the identity and version of the inkpad process.
func (c *Client) Ping() (*PingResponse, error) {
	return c.PingCtx(context.Background())
}

func (c *Client) PingCtx(ctx context.Context) (*PingResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "ping")
	if err != nil {
		return nil, err
	}
	return parse[PingResponse](raw)
}

// Status returns the sequencer's progress snapshot.
func (c *Client) Status() (*StatusResponse, error) {
	return c.StatusCtx(context.Background())
}

func (c *Client) StatusCtx(ctx context.Context) (*StatusResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "status")
	if err != nil {
		return nil, err
	}
	return parse[StatusResponse](raw)
}

// Abort triggers the abort line: a drawing pass returns to cursor homing
// and starts over.
func (c *Client) Abort() (*AbortResponse, error) {
	return c.AbortCtx(context.Background())
}

func (c *Client) AbortCtx(ctx context.Context) (*AbortResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "abort")
	if err != nil {
		return nil, err
	}
	return parse[AbortResponse](raw)
}

// Restart resets the sequencer to the controller pairing phase, from any
// phase including done.
func (c *Client) Restart() (*RestartResponse, error) {
	return c.RestartCtx(context.Background())
}

func (c *Client) RestartCtx(ctx context.Context) (*RestartResponse, error) {
	raw, err := c.transport.DoCtx(ctx, "restart")
	if err != nil {
		return nil, err
	}
	return parse[RestartResponse](raw)
}

func parse[T any](data string) (*T, error) {
	if data == "" {
		return nil, errors.New("empty response")
	}
	if problem := decodeError(data); problem != nil {
		return nil, problem
	}
	var out T
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return &out, nil
}
