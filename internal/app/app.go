// Package app dispatches parsed commands to the session owner, IPC clients, and
// read-only store commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/audio"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/cli"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/config"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/doctor"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/session"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/version"
)

const forwardTimeout = 220 * time.Millisecond

type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdin: os.Stdin, Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("faloodai"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("faloodai"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := logRuntime.SetLevel(cfgLoaded.Config.Log.Level); err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
	}
	for _, w := range cfgLoaded.Warnings {
		// mcp speaks JSON-RPC on stdout; keep stderr quiet for its host too.
		if parsed.Command != cli.CommandMCP {
			fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		}
		logger.Warn("config warning", "key", w.Key, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandPause, cli.CommandResume, cli.CommandStop, cli.CommandCancel:
		return r.forwardOrFail(ctx, string(parsed.Command))
	case cli.CommandWatch:
		return r.commandWatch(ctx)
	case cli.CommandDebrief:
		return r.commandDebrief(ctx, cfgLoaded.Config, parsed.SessionID, parsed.Format)
	case cli.CommandSessions:
		return r.commandSessions(ctx, cfgLoaded.Config, parsed.Limit)
	case cli.CommandMCP:
		return r.commandMCP(ctx, cfgLoaded.Config, logger)
	case cli.CommandStart:
		return r.commandStart(ctx, cfgLoaded.Config, parsed, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) stdin() io.Reader {
	if r.Stdin == nil {
		return os.Stdin
	}
	return r.Stdin
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default || device.DefaultMonitor {
			defaultMark = "*"
		}
		kind := "input"
		if device.Monitor {
			kind = "monitor"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | kind=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			kind,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	var data session.StatusData
	if decodeErr := ipc.DecodeData(resp, &data); decodeErr != nil || data.SessionID == "" {
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	elapsed := time.Since(data.StartedAt).Round(time.Second)
	fmt.Fprintf(r.Stdout, "%s session=%s elapsed=%s", data.State, data.SessionID, elapsed)
	if data.QuotaRemaining >= 0 {
		fmt.Fprintf(r.Stdout, " quota_remaining=%d", data.QuotaRemaining)
	}
	fmt.Fprintln(r.Stdout)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active faloodai session\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward reports handled=false when no session owns the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Call(ctx, socketPath, command, forwardTimeout)
	switch {
	case err == nil:
		return resp, true, nil
	case errors.Is(err, ipc.ErrNotRunning):
		return ipc.Response{}, false, nil
	case resp.Error != "":
		return resp, true, errors.New(resp.Error)
	default:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	}
}
