// Package tui renders a running practice session in the terminal.
package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/live"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	callTimeout         = 2 * time.Second
	noticeTimeout       = 4 * time.Second
)

// Caller sends one command to the running session.
type Caller func(ctx context.Context, command string) (ipc.Response, error)

// Model is the root bubbletea model for `faloodai watch`.
type Model struct {
	call     Caller
	interval time.Duration

	connected bool
	state     string
	sessionID string
	snapshot  live.Snapshot

	notice      string
	noticeError bool

	width  int
	height int
}

// New returns a model polling through call every interval.
func New(call Caller, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return Model{call: call, interval: interval, state: "connecting"}
}

// Init starts polling immediately.
func (m Model) Init() tea.Cmd {
	return pollCmd(m.call)
}

func pollCmd(call Caller) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()

		resp, err := call(ctx, ipc.CommandSnapshot)
		if err != nil {
			return PollErrorMsg{Err: err}
		}
		var snap live.Snapshot
		if err := ipc.DecodeData(resp, &snap); err != nil {
			return PollErrorMsg{Err: err}
		}
		return SnapshotMsg{State: resp.State, SessionID: resp.SessionID, Snapshot: snap}
	}
}

func commandCmd(call Caller, command string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
		defer cancel()
		resp, err := call(ctx, command)
		return CommandResultMsg{Command: command, Response: resp, Err: err}
	}
}

func tickCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return TickMsg{}
	})
}

func clearNoticeCmd() tea.Cmd {
	return tea.Tick(noticeTimeout, func(time.Time) tea.Msg {
		return ClearNoticeMsg{}
	})
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.connected = true
		m.state = msg.State
		m.sessionID = msg.SessionID
		m.snapshot = msg.Snapshot
		return m, tickCmd(m.interval)

	case PollErrorMsg:
		m.connected = false
		m.state = "disconnected"
		m.notice = msg.Err.Error()
		m.noticeError = true
		return m, tickCmd(m.interval)

	case TickMsg:
		return m, pollCmd(m.call)

	case CommandResultMsg:
		switch {
		case msg.Err != nil:
			m.notice = msg.Err.Error()
			m.noticeError = true
		case !msg.Response.OK:
			m.notice = msg.Response.Error
			m.noticeError = true
		default:
			m.notice = msg.Response.Message
			m.noticeError = false
		}
		return m, clearNoticeCmd()

	case ClearNoticeMsg:
		m.notice = ""
		m.noticeError = false
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		return m, tea.Quit
	case " ", "p":
		if !m.connected {
			return m, nil
		}
		if m.state == "paused" {
			return m, commandCmd(m.call, ipc.CommandResume)
		}
		return m, commandCmd(m.call, ipc.CommandPause)
	case "s":
		if !m.connected {
			return m, nil
		}
		return m, commandCmd(m.call, ipc.CommandStop)
	case "x":
		if !m.connected {
			return m, nil
		}
		return m, commandCmd(m.call, ipc.CommandCancel)
	}
	return m, nil
}
