// Package server runs the MCP request loop for one service over a line-delimited
// stdio transport.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/golovatskygroup/mcp-atlassian/pkg/mcp"
)

// Catalog is the tool surface a server exposes. *dispatch.Dispatcher satisfies it.
type Catalog interface {
	Tools() []mcp.Tool
	Call(ctx context.Context, name string, args json.RawMessage) *mcp.CallToolResult
}

// Info identifies the server in the initialize handshake.
type Info struct {
	Name    string
	Version string
}

// Server is the MCP server of a single service.
type Server struct {
	info      Info
	catalog   Catalog
	transport *mcp.Transport
	log       zerolog.Logger
}

// New creates a server reading requests from r and writing responses to w.
func New(info Info, catalog Catalog, r io.Reader, w io.Writer, log zerolog.Logger) *Server {
	return &Server{
		info:      info,
		catalog:   catalog,
		transport: mcp.NewTransport(r, w),
		log:       log,
	}
}

type readResult struct {
	req *mcp.Request
	err error
}

// Run serves requests one at a time until the input ends (nil) or ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info().Str("name", s.info.Name).Str("version", s.info.Version).Int("tools", len(s.catalog.Tools())).Msg("serving on stdio")

	// The blocking read runs in its own goroutine so cancellation is observed
	// between requests. The next read starts only after the previous request is
	// answered.
	msgs := make(chan readResult)
	next := make(chan struct{}, 1)
	go func() {
		defer close(msgs)
		for {
			req, err := s.transport.ReadMessage()
			select {
			case msgs <- readResult{req: req, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && isFatalRead(err) {
				return
			}
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("shutting down")
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			if m.err != nil {
				if errors.Is(m.err, io.EOF) {
					s.log.Info().Msg("input closed")
					return nil
				}
				if isFatalRead(m.err) {
					return fmt.Errorf("read request: %w", m.err)
				}
				if !errors.Is(m.err, mcp.ErrEmptyLine) {
					s.log.Warn().Err(m.err).Msg("skipping malformed message")
				}
				next <- struct{}{}
				continue
			}

			if resp := s.handleRequest(ctx, m.req); resp != nil {
				if err := s.transport.WriteResponse(resp); err != nil {
					return fmt.Errorf("write response: %w", err)
				}
			}
			next <- struct{}{}
		}
	}
}

// isFatalRead reports read errors after which no further message can arrive.
// Parse failures and blank lines are not fatal.
func isFatalRead(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, mcp.ErrEmptyLine), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return false
	}
	return true
}

func (s *Server) handleRequest(ctx context.Context, req *mcp.Request) *mcp.Response {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		return nil
	case "ping":
		return s.respond(req, map[string]any{})
	case "tools/list":
		return s.respond(req, mcp.ListToolsResult{Tools: s.catalog.Tools()})
	case "tools/call":
		return s.handleCallTool(ctx, req)
	default:
		if req.IsNotification() {
			return nil
		}
		return mcp.NewErrorResponse(req.ID, mcp.MethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}
}

func (s *Server) handleInitialize(req *mcp.Request) *mcp.Response {
	return s.respond(req, mcp.InitializeResult{
		ProtocolVersion: mcp.ProtocolVersion,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{},
		},
		ServerInfo: mcp.ServerInfo{
			Name:    s.info.Name,
			Version: s.info.Version,
		},
	})
}

func (s *Server) handleCallTool(ctx context.Context, req *mcp.Request) *mcp.Response {
	var params mcp.CallToolParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: "+err.Error())
	}
	if params.Name == "" {
		return mcp.NewErrorResponse(req.ID, mcp.InvalidParams, "Invalid params: name is required")
	}
	return s.respond(req, s.catalog.Call(ctx, params.Name, params.Arguments))
}

func (s *Server) respond(req *mcp.Request, result any) *mcp.Response {
	resp, err := mcp.NewResponse(req.ID, result)
	if err != nil {
		return mcp.NewErrorResponse(req.ID, mcp.InternalError, err.Error())
	}
	return resp
}
