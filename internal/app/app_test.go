package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/debrief"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/fsm"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/ipc"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/session"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
)

const quietConfig = `
[openai]
api_key = "sk-test"

[interview]
question = "Tell me about a time you changed your mind."
`

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "faloodai")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestRunnerStatusIdleWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStopReturnsNoActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no active faloodai session")
}

func TestRunnerForwardsCommandsToActiveSession(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "faloodai.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "recording"}
		case ipc.CommandPause, ipc.CommandResume, ipc.CommandStop, ipc.CommandCancel:
			return ipc.Response{OK: true, Message: req.Command + " requested"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	runner := Runner{}
	want := []string{"status", "pause", "resume", "stop", "cancel"}
	for _, cmd := range want {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner.Stdout = stdout
		runner.Stderr = stderr

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		if cmd != "status" {
			require.Equal(t, cmd+" requested\n", stdout.String())
		}
	}

	got := make([]string, 0, len(want))
	for range want {
		got = append(got, <-commands)
	}
	require.ElementsMatch(t, want, got)
}

func TestRunnerForwardSurfacesRefusal(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "faloodai.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: false, State: "idle", Error: "cannot pause from state idle"}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "pause"})
	require.Equal(t, 1, exitCode)
	require.Equal(t, "error: cannot pause from state idle\n", stderr.String())
}

func TestRunnerStatusPrintsSessionDetails(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "faloodai.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.WithData(ipc.Response{OK: true, State: "paused", SessionID: "s-42"}, session.StatusData{
			State:          "paused",
			SessionID:      "s-42",
			StartedAt:      time.Now().Add(-90 * time.Second),
			QuotaRemaining: 2,
		})
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "paused session=s-42 elapsed=1m30s")
	require.Contains(t, stdout.String(), "quota_remaining=2")
}

func TestRunnerStatusFallsBackToIdleWhenServerStateEmpty(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "faloodai.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: ""}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "idle\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "faloodai.sock")
	shutdown := startIPCServerForRunnerTest(t, socketPath, func(_ context.Context, req ipc.Request) ipc.Response {
		if req.Command == ipc.CommandStatus {
			return ipc.Response{OK: true, State: "recording"}
		}
		return ipc.Response{OK: false, Error: "unsupported"}
	})
	defer shutdown()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "recording", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.CommandCancel)
	require.True(t, handled)
	require.EqualError(t, err, "unsupported")
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "faloodai.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "faloodai.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.CommandStatus)
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] audio.device")
	require.Contains(t, stdout.String(), "[OK] store.sqlite")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

func TestRunnerStartAbandonsSessionWhenCaptureFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "start"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "faloodai.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)

	st := openTestStore(t, paths)
	sessions, err := st.ListSessions(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, practice.StatusAbandoned, sessions[0].Status)
}

func TestRunnerStartRefusedWhenQuotaExhausted(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(quietConfig+"\n[entitlement]\ndaily_limit = 1\n"), 0o600))

	st := openTestStore(t, paths)
	require.NoError(t, st.CreateSession(context.Background(), practice.Session{
		ID:        practice.NewID(),
		Status:    practice.StatusInProgress,
		StartedAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, st.Close())

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "start"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "practice quota exceeded")
	require.Contains(t, stderr.String(), "1 of 1")
}

func TestRunnerDebriefRecomputesFromStore(t *testing.T) {
	paths := setupRunnerEnv(t)
	ctx := context.Background()

	st := openTestStore(t, paths)
	sess := practice.Session{ID: practice.NewID(), Status: practice.StatusInProgress, StartedAt: time.Now()}
	require.NoError(t, st.CreateSession(ctx, sess))
	for _, score := range []float64{4, 2} {
		_, err := st.AppendEvent(ctx, sess.ID, practice.PracticeEvent{
			Type:   practice.EventAIFeedback,
			Rubric: map[string]float64{"Structure": score},
		})
		require.NoError(t, err)
	}
	require.NoError(t, st.Close())

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(ctx, []string{"--config", paths.configPath, "debrief", sess.ID, "--format", "json"})
	require.Equal(t, 0, exitCode, stderr.String())

	var report debrief.Report
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &report))
	require.Equal(t, 2, report.FeedbackCount)
	require.InDelta(t, 3.0, report.Dimensions[0].Average, 1e-9)
}

func TestRunnerDebriefUnknownSession(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "debrief", "nope"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), `session "nope" not found`)
}

func TestRunnerSessionsListsNewestFirst(t *testing.T) {
	paths := setupRunnerEnv(t)
	ctx := context.Background()

	var stdout bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &bytes.Buffer{}}
	require.Equal(t, 0, runner.Execute(ctx, []string{"--config", paths.configPath, "sessions"}))
	require.Equal(t, "no sessions recorded\n", stdout.String())

	st := openTestStore(t, paths)
	older := practice.Session{ID: "older", Mode: "behavioral", Status: practice.StatusInProgress, StartedAt: time.Now().Add(-2 * time.Hour)}
	newer := practice.Session{ID: "newer", Mode: "technical", Status: practice.StatusInProgress, StartedAt: time.Now().Add(-time.Hour)}
	require.NoError(t, st.CreateSession(ctx, older))
	require.NoError(t, st.CreateSession(ctx, newer))
	require.NoError(t, st.Close())

	stdout.Reset()
	require.Equal(t, 0, runner.Execute(ctx, []string{"--config", paths.configPath, "sessions", "--limit", "1"}))
	require.Contains(t, stdout.String(), "newer")
	require.NotContains(t, stdout.String(), "older")
}

func TestLogSessionResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logSessionResult(logger, session.Result{
		State:      fsm.StateIdle,
		Session:    practice.Session{ID: "s-1", Status: practice.StatusCompleted},
		StartedAt:  started,
		FinishedAt: finished,
		Debrief:    &debrief.Report{OverallScore: 60, FeedbackCount: 3},
	})

	require.Contains(t, logBuf.String(), "session complete")
	require.Contains(t, logBuf.String(), "\"feedback_count\":3")
	require.Contains(t, logBuf.String(), "\"duration_ms\":1500")

	logBuf.Reset()
	logSessionResult(logger, session.Result{
		State:      fsm.StateIdle,
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "session failed")
	require.Contains(t, logBuf.String(), "boom")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
	stateDir   string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("FALOODAI_OPENAI_API_KEY", "")
	t.Setenv("FALOODAI_STORE_DSN", "")

	configPath := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(quietConfig), 0o600))

	return runnerPaths{
		configPath: configPath,
		runtimeDir: runtimeDir,
		stateDir:   filepath.Join(xdgStateHome, "faloodai"),
	}
}

func openTestStore(t *testing.T, paths runnerPaths) *store.SQLite {
	t.Helper()
	st, err := store.OpenSQLite(context.Background(), filepath.Join(paths.stateDir, "faloodai.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
