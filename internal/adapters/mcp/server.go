// Package mcpadapter exposes the chat pipeline as an MCP stdio server so
// desktop assistants can query tenant knowledge bases as a tool.
package mcpadapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/mkoval/chatpoint/internal/core/domain"
	"github.com/mkoval/chatpoint/internal/core/ports"
)

// Server wraps an MCP stdio server around a ChatResponder.
type Server struct {
	inner     *server.MCPServer
	responder ports.ChatResponder
}

// New builds the server and registers the ask tool.
func New(responder ports.ChatResponder, version string) *Server {
	s := &Server{
		inner: server.NewMCPServer(
			"chatpoint",
			version,
			server.WithToolCapabilities(false),
			server.WithRecovery(),
		),
		responder: responder,
	}

	askTool := mcp.NewTool("ask",
		mcp.WithDescription("Ask the tenant's knowledge base a question and get a grounded answer with sources."),
		mcp.WithString("tenant_id",
			mcp.Required(),
			mcp.Description("Tenant whose datasets and points balance are used."),
		),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The user question."),
		),
		mcp.WithString("session_id",
			mcp.Description("Conversation session to continue. A new one is created when omitted."),
		),
		mcp.WithArray("dataset_ids",
			mcp.Description("Datasets to search. All tenant datasets when omitted."),
			mcp.Items(map[string]any{"type": "string"}),
		),
	)
	s.inner.AddTool(askTool, s.handleAsk)

	return s
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tenantID, err := request.RequireString("tenant_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := s.responder.Respond(ctx, domain.ChatRequest{
		TenantID:   tenantID,
		SessionID:  request.GetString("session_id", ""),
		Message:    message,
		Channel:    domain.ChannelWeb,
		DatasetIDs: request.GetStringSlice("dataset_ids", nil),
	})
	if err != nil {
		slog.Error("mcp ask failed", "tenant_id", tenantID, "error", err)
		return mcp.NewToolResultError(domain.UserMessageFor(domain.ErrorCodeInternal)), nil
	}
	if !reply.Success {
		return mcp.NewToolResultError(reply.Text), nil
	}

	return mcp.NewToolResultText(renderReply(reply)), nil
}

// renderReply appends a compact source list so the assistant can cite them.
func renderReply(reply *domain.ChatReply) string {
	if len(reply.Sources) == 0 {
		return reply.Text
	}
	var b strings.Builder
	b.WriteString(reply.Text)
	b.WriteString("\n\nSources:\n")
	for i, src := range reply.Sources {
		fmt.Fprintf(&b, "%d. dataset=%s document=%s\n", i+1, src.DatasetID, src.DocumentID)
	}
	return b.String()
}

// ServeStdio blocks until stdin closes or the context is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := server.NewStdioServer(s.inner)
	return srv.Listen(ctx, os.Stdin, os.Stdout)
}
