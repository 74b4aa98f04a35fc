// Package cli defines the faloodai command tree and parses argv into a command.
package cli

import (
	"bytes"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

type Command string

const (
	CommandStart    Command = "start"
	CommandPause    Command = "pause"
	CommandResume   Command = "resume"
	CommandStop     Command = "stop"
	CommandCancel   Command = "cancel"
	CommandStatus   Command = "status"
	CommandWatch    Command = "watch"
	CommandDebrief  Command = "debrief"
	CommandSessions Command = "sessions"
	CommandDevices  Command = "devices"
	CommandDoctor   Command = "doctor"
	CommandMCP      Command = "mcp"
	CommandVersion  Command = "version"
	CommandHelp     Command = "help"
)

// Parsed is the command selected by argv plus its flags.
type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool

	SessionID  string
	Format     string
	Limit      int
	Question   string
	Difficulty string
	Mode       string
}

// NewRootCmd builds the command tree. selected receives the parsed command when
// a leaf runs; help output never reaches it.
func NewRootCmd(binaryName string, selected func(Parsed)) *cobra.Command {
	var (
		configPath  string
		showVersion bool
	)
	emit := func(p Parsed) {
		p.ConfigPath = configPath
		selected(p)
	}
	simple := func(cmd Command) func(*cobra.Command, []string) error {
		return func(*cobra.Command, []string) error {
			emit(Parsed{Command: cmd})
			return nil
		}
	}

	root := &cobra.Command{
		Use:   binaryName,
		Short: "Live mock-interview practice with transcription and coaching",
		Long: "Captures a practice interview from the desktop, transcribes and attributes each\n" +
			"turn, coaches the candidate's answers as they happen, and prints a debrief\n" +
			"when the session ends.",
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				emit(Parsed{Command: CommandVersion})
				return nil
			}
			emit(Parsed{Command: CommandHelp, ShowHelp: true})
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: $XDG_CONFIG_HOME/faloodai/config.toml)")
	root.Flags().BoolVar(&showVersion, "version", false, "show version")

	start := &cobra.Command{
		Use:   "start",
		Short: "Start a practice session and print its debrief when it ends",
		Args:  cobra.NoArgs,
	}
	var startFlags Parsed
	start.Flags().StringVar(&startFlags.Question, "question", "", "interview question being practiced")
	start.Flags().StringVar(&startFlags.Difficulty, "difficulty", "", "difficulty label (default from config)")
	start.Flags().StringVar(&startFlags.Mode, "mode", "", "interview mode (default from config)")
	start.Flags().StringVar(&startFlags.Format, "format", "text", "debrief format: text, json or yaml")
	start.RunE = func(*cobra.Command, []string) error {
		p := startFlags
		p.Command = CommandStart
		emit(p)
		return nil
	}

	debriefCmd := &cobra.Command{
		Use:   "debrief SESSION_ID",
		Short: "Recompute the debrief of a recorded session",
		Args:  cobra.ExactArgs(1),
	}
	debriefFormat := debriefCmd.Flags().String("format", "text", "output format: text, json or yaml")
	debriefCmd.RunE = func(_ *cobra.Command, args []string) error {
		emit(Parsed{Command: CommandDebrief, SessionID: strings.TrimSpace(args[0]), Format: *debriefFormat})
		return nil
	}

	sessions := &cobra.Command{
		Use:   "sessions",
		Short: "List recorded sessions, newest first",
		Args:  cobra.NoArgs,
	}
	limit := sessions.Flags().Int("limit", 20, "maximum sessions to list")
	sessions.RunE = func(*cobra.Command, []string) error {
		emit(Parsed{Command: CommandSessions, Limit: *limit})
		return nil
	}

	leaf := func(cmd Command, short string) *cobra.Command {
		return &cobra.Command{Use: string(cmd), Short: short, Args: cobra.NoArgs, RunE: simple(cmd)}
	}

	root.AddCommand(
		start,
		leaf(CommandPause, "Pause the running session"),
		leaf(CommandResume, "Resume a paused session"),
		leaf(CommandStop, "Stop the running session and compute its debrief"),
		leaf(CommandCancel, "Cancel the running session and mark it abandoned"),
		leaf(CommandStatus, "Print the running session state"),
		leaf(CommandWatch, "Watch the running session in the terminal"),
		debriefCmd,
		sessions,
		leaf(CommandDevices, "List available audio sources"),
		leaf(CommandDoctor, "Run configuration and environment checks"),
		leaf(CommandMCP, "Serve session tools over MCP on stdio"),
		leaf(CommandVersion, "Print version information"),
	)
	return root
}

// Parse maps argv onto a command without running it.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}
	root := NewRootCmd("faloodai", func(p Parsed) { parsed = p })
	root.SetArgs(nonNil(args))
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)

	if err := root.Execute(); err != nil {
		return Parsed{}, err
	}
	return parsed, nil
}

// HelpText renders the root usage.
func HelpText(binaryName string) string {
	var buf bytes.Buffer
	root := NewRootCmd(binaryName, func(Parsed) {})
	root.SetOut(&buf)
	_ = root.Usage()
	return buf.String()
}

func nonNil(args []string) []string {
	if args == nil {
		return []string{}
	}
	return args
}
