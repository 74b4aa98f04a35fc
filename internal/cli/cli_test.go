package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/faloodai.toml", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/faloodai.toml", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseConfigAfterCommand(t *testing.T) {
	parsed, err := Parse([]string{"status", "--config", "/tmp/x.toml"})
	require.NoError(t, err)
	require.Equal(t, CommandStatus, parsed.Command)
	require.Equal(t, "/tmp/x.toml", parsed.ConfigPath)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "version command", args: []string{"version"}, wantCmd: CommandVersion},
		{name: "pause", args: []string{"pause"}, wantCmd: CommandPause},
		{name: "resume", args: []string{"resume"}, wantCmd: CommandResume},
		{name: "stop", args: []string{"stop"}, wantCmd: CommandStop},
		{name: "cancel", args: []string{"cancel"}, wantCmd: CommandCancel},
		{name: "watch", args: []string{"watch"}, wantCmd: CommandWatch},
		{name: "devices", args: []string{"devices"}, wantCmd: CommandDevices},
		{name: "mcp", args: []string{"mcp"}, wantCmd: CommandMCP},
		{name: "unknown command", args: []string{"toggle"}, wantErr: "unknown command"},
		{name: "unknown flag", args: []string{"--wat"}, wantErr: "unknown flag"},
		{name: "missing config value", args: []string{"status", "--config"}, wantErr: "flag needs an argument"},
		{name: "extra positional", args: []string{"stop", "now"}, wantErr: "unknown command"},
		{name: "debrief without id", args: []string{"debrief"}, wantErr: "accepts 1 arg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
		})
	}
}

func TestParseStartFlags(t *testing.T) {
	parsed, err := Parse([]string{"start", "--question", "Why this team?", "--difficulty", "hard", "--format", "json"})
	require.NoError(t, err)
	require.Equal(t, CommandStart, parsed.Command)
	require.Equal(t, "Why this team?", parsed.Question)
	require.Equal(t, "hard", parsed.Difficulty)
	require.Equal(t, "json", parsed.Format)
	require.Empty(t, parsed.Mode)
}

func TestParseDebriefAndSessions(t *testing.T) {
	parsed, err := Parse([]string{"debrief", "abc-123", "--format", "yaml"})
	require.NoError(t, err)
	require.Equal(t, CommandDebrief, parsed.Command)
	require.Equal(t, "abc-123", parsed.SessionID)
	require.Equal(t, "yaml", parsed.Format)

	parsed, err = Parse([]string{"sessions"})
	require.NoError(t, err)
	require.Equal(t, CommandSessions, parsed.Command)
	require.Equal(t, 20, parsed.Limit)

	parsed, err = Parse([]string{"sessions", "--limit", "5"})
	require.NoError(t, err)
	require.Equal(t, 5, parsed.Limit)
}

func TestHelpTextListsCommands(t *testing.T) {
	text := HelpText("faloodai")
	require.Contains(t, text, "Usage:")
	for _, cmd := range []string{"start", "stop", "watch", "debrief", "sessions", "doctor", "mcp"} {
		require.Contains(t, text, cmd)
	}
	require.Contains(t, text, "--config")
}
