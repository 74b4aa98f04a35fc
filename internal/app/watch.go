package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/tui"
)

func (r Runner) commandWatch(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if alive, _ := ipc.Probe(ctx, socketPath, forwardTimeout); !alive {
		fmt.Fprintf(r.Stderr, "error: no active faloodai session\n")
		return 1
	}

	call := func(ctx context.Context, command string) (ipc.Response, error) {
		return ipc.Call(ctx, socketPath, command, time.Second)
	}
	program := tea.NewProgram(
		tui.New(call, tui.DefaultPollInterval),
		tea.WithContext(ctx),
		tea.WithInput(r.stdin()),
		tea.WithOutput(r.Stdout),
		tea.WithAltScreen(),
	)
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
