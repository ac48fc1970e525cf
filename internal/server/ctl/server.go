// Package ctl serves the operator control API over TCP: one NUL-terminated
// command per connection, one JSON response. Commands are fixed verbs
// (ping, status, abort, restart); with a password configured, connections
// may open with the auth handshake and continue encrypted.
package ctl

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"time"

	"inkpad/ctlapi"
	"inkpad/internal/abortline"
	"inkpad/internal/server/ctl/auth"
	"inkpad/printer"
)

// ServerConfig is the ctl listener configuration.
type ServerConfig struct {
	Addr              string        `help:"Control API listen address." default:":3242" env:"INKPAD_CTL_ADDR"`
	Password          string        `help:"Control API password; defaults to the generated key file, empty key disables authentication." env:"INKPAD_CTL_PASSWORD"`
	ConnectionTimeout time.Duration `kong:"-"`
}

// Server owns the listener and dispatches commands against the print
// driver and the abort line.
type Server struct {
	cfg     ServerConfig
	driver  *printer.Driver
	line    *abortline.Line
	version string
	logger  *slog.Logger
	ln      net.Listener
	key     []byte
}

// New builds a ctl server. The driver and line are shared with the poll
// transports; version is reported by ping.
func New(cfg ServerConfig, driver *printer.Driver, line *abortline.Line, version string, logger *slog.Logger) (*Server, error) {
	s := &Server{
		cfg:     cfg,
		driver:  driver,
		line:    line,
		version: version,
		logger:  logger.With("server", "ctl"),
	}
	if cfg.Password != "" {
		key, err := auth.DeriveKey(cfg.Password)
		if err != nil {
			return nil, fmt.Errorf("derive ctl key: %w", err)
		}
		s.key = key
	}
	return s, nil
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("control API listening", "addr", ln.Addr().String())
	go s.serve()
	return nil
}

// Addr returns the bound listen address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close stops the listener.
func (s *Server) Close() {
	if s.ln != nil {
		_ = s.ln.Close()
	}
}

func (s *Server) serve() {
	for {
		c, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.logger.Info("control API stopped")
				return
			}
			s.logger.Error("accept error", "error", err)
			return
		}
		go s.handleConn(c)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	if s.cfg.ConnectionTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(s.cfg.ConnectionTimeout))
	}

	logger := s.logger.With("remote", conn.RemoteAddr().String())
	r := bufio.NewReader(conn)
	var w io.Writer = conn

	if s.key != nil {
		isAuth, err := auth.IsHandshake(r)
		if err != nil {
			logger.Error("read request", "error", err)
			return
		}
		if !isAuth {
			logger.Warn("rejected unauthenticated connection")
			writeError(w, ErrUnauthorized("authentication required"))
			return
		}
		clientNonce, serverNonce, err := auth.ServerHandshake(r, conn, s.key)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidPassword) {
				logger.Warn("rejected invalid password")
				writeError(w, ErrUnauthorized("invalid password"))
			} else {
				logger.Error("handshake failed", "error", err)
			}
			return
		}
		sessionKey := auth.DeriveSessionKey(s.key, serverNonce, clientNonce)
		sec, err := auth.WrapConn(conn, sessionKey)
		if err != nil {
			logger.Error("wrap connection", "error", err)
			return
		}
		r = bufio.NewReader(sec)
		w = sec
	}

	req, err := r.ReadString('\x00')
	if err != nil {
		if err == io.EOF {
			logger.Error("incomplete request (no null terminator)")
		} else {
			logger.Error("read request", "error", err)
		}
		return
	}
	cmd := strings.ToLower(strings.TrimSpace(strings.TrimSuffix(req, "\x00")))
	if cmd == "" {
		writeError(w, ErrBadRequest("empty command"))
		return
	}
	logger.Info("ctl cmd", "command", cmd)

	resp, err := s.dispatch(cmd)
	if err != nil {
		logger.Error("ctl command failed", "command", cmd, "error", err)
		writeError(w, err)
		return
	}
	data, err := json.Marshal(resp)
	if err != nil {
		writeError(w, err)
		return
	}
	fmt.Fprintf(w, "%s\n", data)
}

func (s *Server) dispatch(cmd string) (any, error) {
	switch cmd {
	case "ping":
		return ctlapi.PingResponse{Server: "inkpad", Version: s.version}, nil
	case "status":
		snap := s.driver.Snapshot()
		return ctlapi.StatusResponse{
			Phase:    snap.Phase.String(),
			CursorX:  snap.Cursor.X,
			CursorY:  snap.Cursor.Y,
			Sweep:    snap.Sweep,
			Command:  snap.Command,
			Progress: snap.Progress(),
			Polls:    snap.Polls,
			Inked:    snap.Inked,
		}, nil
	case "abort":
		snap := s.driver.Snapshot()
		s.line.Trigger()
		return ctlapi.AbortResponse{Phase: snap.Phase.String()}, nil
	case "restart":
		s.driver.Reset()
		return ctlapi.RestartResponse{Phase: s.driver.Snapshot().Phase.String()}, nil
	}
	return nil, ErrNotFound(fmt.Sprintf("unknown command: %s", cmd))
}

func writeError(w io.Writer, err error) {
	problemJSON, _ := json.Marshal(WrapError(err))
	fmt.Fprintf(w, "%s\n", problemJSON)
}
