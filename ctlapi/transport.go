package ctlapi

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"inkpad/internal/server/ctl/auth"
)

// Config controls low-level transport behavior such as timeouts.
type Config struct {
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Password     string
}

func defaultConfig() Config {
	return Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Transport implements the control protocol framing: one `<command>\x00`
// request per connection, one newline-terminated JSON response, connection
// closed by the server. With a password set, the auth handshake and framed
// encryption wrap the exchange.
type Transport struct {
	addr string
	mock func(command string) (string, error)
	cfg  Config
}

// NewTransport creates a plaintext transport.
func NewTransport(addr string) *Transport { return NewTransportWithConfig(addr, nil) }

// NewTransportWithPassword creates a transport that authenticates every
// connection.
func NewTransportWithPassword(addr, password string) *Transport {
	cfg := defaultConfig()
	cfg.Password = password
	return NewTransportWithConfig(addr, &cfg)
}

// NewTransportWithConfig creates a transport with explicit timeouts.
func NewTransportWithConfig(addr string, cfg *Config) *Transport {
	c := defaultConfig()
	if cfg != nil {
		c = *cfg
	}
	return &Transport{addr: addr, cfg: c}
}

// NewMockTransport returns canned responses without networking; the
// responder receives the raw command.
func NewMockTransport(responder func(command string) (string, error)) *Transport {
	return &Transport{addr: "mock", mock: responder, cfg: defaultConfig()}
}

// Do sends one command and returns the raw response without the trailing
// newline.
func (t *Transport) Do(command string) (string, error) {
	return t.DoCtx(context.Background(), command)
}

// DoCtx is like Do but honors the provided context and configured timeouts.
func (t *Transport) DoCtx(ctx context.Context, command string) (string, error) {
	if t.mock != nil {
		return t.mock(command)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	d := &net.Dialer{Timeout: t.cfg.DialTimeout}
	conn, err := d.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if t.cfg.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	}

	if t.cfg.Password != "" {
		key, err := auth.DeriveKey(t.cfg.Password)
		if err != nil {
			return "", err
		}
		r := bufio.NewReader(conn)
		clientNonce, serverNonce, err := auth.ClientHandshake(r, conn, key)
		if err != nil {
			var rejected *auth.RejectedError
			if errors.As(err, &rejected) {
				if apiErr := decodeError(string(rejected.Raw)); apiErr != nil {
					return "", apiErr
				}
			}
			if strings.Contains(err.Error(), "read handshake response: EOF") {
				return "", &Error{Status: 401, Title: "Unauthorized", Detail: "invalid password"}
			}
			return "", err
		}
		sessionKey := auth.DeriveSessionKey(key, serverNonce, clientNonce)
		conn, err = auth.WrapConn(conn, sessionKey)
		if err != nil {
			return "", err
		}
	}

	if _, err := conn.Write([]byte(command + "\x00")); err != nil {
		return "", fmt.Errorf("write: %w", err)
	}
	if t.cfg.ReadTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(t.cfg.ReadTimeout))
	}
	respBytes, err := io.ReadAll(conn)
	if err != nil && len(respBytes) == 0 {
		return "", fmt.Errorf("read: %w", err)
	}
	return strings.TrimSuffix(string(respBytes), "\n"), nil
}

// decodeError parses a problem-JSON body, or nil when data is not one.
func decodeError(data string) *Error {
	data = strings.TrimSpace(data)
	var problem Error
	if err := json.Unmarshal([]byte(data), &problem); err == nil && (problem.Status != 0 || problem.Title != "") {
		return &problem
	}
	return nil
}
