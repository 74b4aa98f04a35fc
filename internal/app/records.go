package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/config"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/debrief"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/mcpserver"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/version"
)

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}

func (r Runner) commandDebrief(ctx context.Context, cfg config.Config, sessionID string, format string) int {
	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	if _, err := st.GetSession(ctx, sessionID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			fmt.Fprintf(r.Stderr, "error: session %q not found\n", sessionID)
		} else {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
		return 1
	}

	events, err := st.ListAIFeedback(ctx, sessionID)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	report := debrief.Compute(sessionID, events, cfg.Coach.RubricScale)
	if err := debrief.Write(r.Stdout, report, format); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}
	return 0
}

func (r Runner) commandSessions(ctx context.Context, cfg config.Config, limit int) int {
	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	sessions, err := st.ListSessions(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(sessions) == 0 {
		fmt.Fprintln(r.Stdout, "no sessions recorded")
		return 0
	}
	for _, sess := range sessions {
		fmt.Fprintf(r.Stdout, "%s  %s  %-11s  %-12s  %-8s  %dm\n",
			sess.ID,
			sess.StartedAt.Local().Format(time.DateTime),
			sess.Status,
			sess.Mode,
			sess.Difficulty,
			sess.DurationMinutes,
		)
	}
	return 0
}

func (r Runner) commandMCP(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	st, err := openStore(ctx, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer st.Close()

	srv := mcpserver.New(st, cfg.Coach.RubricScale, version.Version, logger)
	if err := srv.Serve(ctx, r.stdin(), r.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(r.Stderr, "error: mcp server: %v\n", err)
		return 1
	}
	return 0
}
