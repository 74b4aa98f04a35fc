package tui

import (
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
)

// SnapshotMsg carries one polled view of the live session.
type SnapshotMsg struct {
	State     string
	SessionID string
	Snapshot  live.Snapshot
}

// PollErrorMsg is sent when the session could not be reached.
type PollErrorMsg struct {
	Err error
}

// CommandResultMsg carries the reply to a pause/resume/stop/cancel key.
type CommandResultMsg struct {
	Command  string
	Response ipc.Response
	Err      error
}

// TickMsg schedules the next poll.
type TickMsg struct{}

// ClearNoticeMsg clears a transient notice.
type ClearNoticeMsg struct{}
