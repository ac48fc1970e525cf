// Package ctlapi defines the wire types of inkpad's control API and a
// client for it. Requests are a single NUL-terminated command line per
// connection; responses are one JSON document.
package ctlapi

import "fmt"

// Error is an RFC 7807 style problem response.
type Error struct {
	// Status is the HTTP-style status code (e.g., 400, 404, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
}

func (e Error) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server  string `json:"server"`
	Version string `json:"version"`
}

// StatusResponse mirrors one sequencer progress snapshot.
type StatusResponse struct {
	Phase    string  `json:"phase"`
	CursorX  int     `json:"cursorX"`
	CursorY  int     `json:"cursorY"`
	Sweep    int     `json:"sweep"`
	Command  int     `json:"command"`
	Progress float64 `json:"progress"`
	Polls    uint64  `json:"polls"`
	Inked    int     `json:"inked"`
}

// AbortResponse acknowledges an abort trigger; Phase is the phase the
// sequencer was in when the trigger was latched.
type AbortResponse struct {
	Phase string `json:"phase"`
}

// RestartResponse acknowledges a full restart back to controller pairing.
type RestartResponse struct {
	Phase string `json:"phase"`
}
