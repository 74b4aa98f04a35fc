// Package mcpserver exposes recorded practice sessions as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/debrief"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/logging"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/practice"
	"github.com/ikyorince101/faloodai-211fcb72-sub000/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Store is the read side the tools need.
type Store interface {
	ListSessions(ctx context.Context, limit int) ([]practice.Session, error)
	GetSession(ctx context.Context, id string) (practice.Session, error)
	ListAIFeedback(ctx context.Context, sessionID string) ([]practice.PracticeEvent, error)
}

// Server wires the practice store to an MCP tool server.
type Server struct {
	store  Store
	scale  float64
	logger *slog.Logger
	mcp    *server.MCPServer
}

// New builds the tool server. scale is the rubric scale used for debriefs.
func New(st Store, scale float64, version string, logger *slog.Logger) *Server {
	if scale <= 0 {
		scale = debrief.DefaultScale
	}
	s := &Server{store: st, scale: scale, logger: logging.OrDiscard(logger)}

	s.mcp = server.NewMCPServer("faloodai", version, server.WithToolCapabilities(false))
	s.mcp.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List recorded practice sessions, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum sessions to return (default 20, max 200).")),
	), s.handleListSessions)
	s.mcp.AddTool(mcp.NewTool("get_debrief",
		mcp.WithDescription("Compute the debrief for one practice session: per-dimension averages, top strengths and gaps, drill plan, and story bank."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session ID as returned by list_sessions.")),
	), s.handleGetDebrief)
	return s
}

// Serve answers MCP requests on in/out until ctx ends or in closes.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, in, out)
}

func (s *Server) handleListSessions(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	sessions, err := s.store.ListSessions(ctx, limit)
	if err != nil {
		s.logger.Error("mcp list_sessions failed", "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("list sessions: %v", err)), nil
	}
	if sessions == nil {
		sessions = []practice.Session{}
	}
	return jsonResult(sessions)
}

func (s *Server) handleGetDebrief(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if _, err := s.store.GetSession(ctx, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("session %q not found", id)), nil
		}
		s.logger.Error("mcp get_debrief failed", "session_id", id, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("get session: %v", err)), nil
	}

	events, err := s.store.ListAIFeedback(ctx, id)
	if err != nil {
		s.logger.Error("mcp get_debrief failed", "session_id", id, "error", err.Error())
		return mcp.NewToolResultError(fmt.Sprintf("list feedback: %v", err)), nil
	}
	return jsonResult(debrief.Compute(id, events, s.scale))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(raw)), nil
}
