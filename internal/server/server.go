// Package server exposes the Cadenza tools over the Model Context
// Protocol's stdio transport.
//
// Every tool handler is wrapped so that a classified *toolerr.Error
// becomes a structured isError result with code/message/hint instead of a
// protocol failure, and a panic inside a handler is contained as
// internal_error. The server process never dies for a failing tool call.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/MrWong99/cadenza/internal/observe"
	"github.com/MrWong99/cadenza/internal/toolerr"
	"github.com/MrWong99/cadenza/internal/tools"
)

// Name and Version identify this server to MCP clients.
const (
	Name    = "cadenza"
	Version = "1.0.0"
)

// Server wraps an MCP server with the Cadenza tool set.
type Server struct {
	mcp     *mcp.Server
	metrics *observe.Metrics
}

// Option configures a [Server].
type Option func(*Server)

// WithMetrics wires tool call counters and duration histograms in.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		s.metrics = m
	}
}

// New builds a server and registers the given tools on it.
func New(toolset []tools.Tool, opts ...Option) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = mcp.NewServer(&mcp.Implementation{
		Name:    Name,
		Version: Version,
	}, &mcp.ServerOptions{
		HasTools: true,
	})
	for _, t := range toolset {
		s.mcp.AddTool(&mcp.Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
		}, s.wrap(t))
	}
	return s
}

// Run serves MCP requests on stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("mcp server starting", "name", Name, "version", Version)
	if err := s.mcp.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("server: stdio transport: %w", err)
	}
	return nil
}

// wrap adapts a tool handler to the MCP SDK signature with request-id
// logging, metrics, error classification, and panic containment.
func (s *Server) wrap(t tools.Tool) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		requestID := uuid.NewString()
		start := time.Now()
		slog.Info("tool call started", "tool", t.Name, "request_id", requestID)

		result, err := s.invoke(ctx, t, json.RawMessage(req.Params.Arguments))
		elapsed := time.Since(start)

		if err != nil {
			te := toolerr.Classify(err, toolerr.CodeInternalError, "The tool failed unexpectedly.")
			slog.Warn("tool call failed",
				"tool", t.Name, "request_id", requestID,
				"code", te.Code, "error", te.Message, "duration", elapsed)
			s.record(ctx, t.Name, te.Code, elapsed)
			return errorResult(te), nil
		}

		slog.Info("tool call completed", "tool", t.Name, "request_id", requestID, "duration", elapsed)
		s.record(ctx, t.Name, "ok", elapsed)
		return successResult(result)
	}
}

// invoke runs the handler with panic containment.
func (s *Server) invoke(ctx context.Context, t tools.Tool, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = toolerr.Newf(toolerr.CodeInternalError, "The tool panicked: %v.", r)
		}
	}()
	return t.Handle(ctx, args)
}

func (s *Server) record(ctx context.Context, tool, status string, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.RecordToolCall(ctx, tool, status, elapsed.Seconds())
	}
}

// successResult serializes the handler's value as both text content and
// structured content.
func successResult(value any) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		te := toolerr.New(toolerr.CodeInternalError, "The tool result could not be serialized.", "").Wrap(err)
		return errorResult(te), nil
	}
	return &mcp.CallToolResult{
		Content:           []mcp.Content{&mcp.TextContent{Text: string(payload)}},
		StructuredContent: json.RawMessage(payload),
	}, nil
}

// errorResult converts a classified error into a structured isError
// result. The error itself is never returned to the SDK so the session
// stays alive.
func errorResult(te *toolerr.Error) *mcp.CallToolResult {
	structured := map[string]any{
		"code":    te.Code,
		"message": te.Message,
	}
	if te.Hint != "" {
		structured["hint"] = te.Hint
	}
	if te.Status != 0 {
		structured["status"] = te.Status
	}
	return &mcp.CallToolResult{
		IsError:           true,
		Content:           []mcp.Content{&mcp.TextContent{Text: te.Error()}},
		StructuredContent: structured,
	}
}
