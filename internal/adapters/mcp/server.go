// Package mcpadapter exposes retrieval, answering and evaluation as MCP tools.
package mcpadapter

import (
	"context"
	"io"
	"log"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/ddq-assistant/internal/core/domain"
	"github.com/kirillkom/ddq-assistant/internal/core/ports"
)

const defaultTopK = 3

type Services struct {
	Documents  ports.DocumentService
	Projects   ports.ProjectService
	Requests   ports.RequestService
	Evaluation ports.EvaluationService
	Retriever  ports.Retriever
}

type Server struct {
	svc  Services
	topK int
	mcp  *server.MCPServer
}

func NewServer(name, version string, svc Services, topK int) *Server {
	if topK <= 0 {
		topK = defaultTopK
	}
	s := &Server{svc: svc, topK: topK}
	s.mcp = server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithToolHandlerMiddleware(logToolCalls),
	)
	s.registerTools()
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves one client over in/out until ctx is done. Protocol
// errors are logged through the default slog handler.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(slogWriter{}, "", 0))
	return stdio.Listen(ctx, in, out)
}

type slogWriter struct{}

func (slogWriter) Write(p []byte) (int, error) {
	slog.Error("mcp_stdio_error", "message", string(p))
	return len(p), nil
}

func logToolCalls(next server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := next(ctx, req)
		attrs := []any{
			"tool", req.Params.Name,
			"duration_ms", float64(time.Since(start).Microseconds()) / 1000.0,
		}
		switch {
		case err != nil:
			slog.Error("mcp_tool_call", append(attrs, "error", err)...)
		case result != nil && result.IsError:
			slog.Warn("mcp_tool_call", append(attrs, "tool_error", true)...)
		default:
			slog.Info("mcp_tool_call", attrs...)
		}
		return result, err
	}
}

// toolError reports domain failures as tool results so the client model can
// react, keeping protocol errors for transport problems.
func toolError(op string, err error) *mcp.CallToolResult {
	kind := "internal"
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		kind = "not_found"
	case domain.IsKind(err, domain.ErrInvalidInput):
		kind = "invalid_input"
	case domain.IsKind(err, domain.ErrInvalidTransition):
		kind = "conflict"
	case domain.IsKind(err, domain.ErrTemporary):
		kind = "temporary"
	}
	return mcp.NewToolResultErrorFromErr(op+" ("+kind+")", err)
}

func jsonResult(payload map[string]any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(payload)
}
