// Package ipc carries control commands between the CLI and the running session
// over a unix socket, one JSON line each way.
package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Commands understood by a running session.
const (
	CommandStatus   = "status"
	CommandPause    = "pause"
	CommandResume   = "resume"
	CommandStop     = "stop"
	CommandCancel   = "cancel"
	CommandSnapshot = "snapshot"
)

type Request struct {
	Command string `json:"command"`
}

// Response is the single reply to a Request. Data carries command-specific JSON.
type Response struct {
	OK        bool            `json:"ok"`
	State     string          `json:"state,omitempty"`
	SessionID string          `json:"session_id,omitempty"`
	Message   string          `json:"message,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// WithData returns resp carrying v encoded as JSON.
func WithData(resp Response, v any) Response {
	raw, err := json.Marshal(v)
	if err != nil {
		resp.OK = false
		resp.Error = fmt.Sprintf("encode data: %v", err)
		return resp
	}
	resp.Data = raw
	return resp
}

// DecodeData unmarshals resp.Data into v.
func DecodeData(resp Response, v any) error {
	if len(resp.Data) == 0 {
		return errors.New("response carries no data")
	}
	if err := json.Unmarshal(resp.Data, v); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
