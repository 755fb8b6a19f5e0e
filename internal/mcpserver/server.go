// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mcpserver

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	apperrors "toolbridge/internal/errors"
	"toolbridge/internal/tools"
)

// Server exposes a tool registry over the Model Context Protocol.
type Server struct {
	mcp      *server.MCPServer
	registry *tools.Registry
	logger   zerolog.Logger
}

// New builds an MCP server that advertises every tool in registry. The
// registry is read once; tools added later are not published.
func New(name, version string, registry *tools.Registry, logger zerolog.Logger) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(name, version, server.WithToolCapabilities(false)),
		registry: registry,
		logger:   logger.With().Str("component", "mcpserver").Logger(),
	}
	for _, d := range registry.Descriptors() {
		s.mcp.AddTool(toMCPTool(d), s.handlerFor(d.Name))
	}
	return s
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve reads requests from in and writes responses to out until in is
// exhausted or ctx is done. Tool calls run concurrently, so a slow tool
// never delays the answer to a later request.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	transport := newStdioTransport(s.mcp, out, s.logger)

	s.logger.Info().Int("tools", s.registry.Len()).Msg("serving over stdio")
	err := transport.run(ctx, in)
	switch {
	case err == nil, errors.Is(err, io.EOF), errors.Is(err, context.Canceled):
		return nil
	default:
		return apperrors.Wrap(apperrors.CodeTransport, "stdio transport failed", err)
	}
}

func (s *Server) handlerFor(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		slot, err := s.registry.Dispatch(ctx, name, req.GetArguments())
		if err != nil {
			return nil, err
		}
		result, err := slot.Wait(ctx)
		if err != nil {
			s.logger.Warn().Str("tool", name).Str("invocation", slot.ID()).Err(err).Msg("client gave up waiting")
			return nil, err
		}
		return toCallToolResult(result), nil
	}
}

func toMCPTool(d tools.Descriptor) mcp.Tool {
	return mcp.Tool{
		Name:        d.Name,
		Description: d.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: tools.SchemaProperties(d.InputSchema),
			Required:   tools.SchemaRequired(d.InputSchema),
		},
	}
}

func toCallToolResult(r *tools.Result) *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(r.Segments))
	for _, segment := range r.Segments {
		content = append(content, mcp.TextContent{Type: "text", Text: segment})
	}
	return &mcp.CallToolResult{Content: content, IsError: r.IsError}
}
