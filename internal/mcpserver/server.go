// Package mcpserver exposes the tool registry as an MCP server on stdio.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"runtime/debug"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/vvka-141/sqlmcp/internal/logging"
	"github.com/vvka-141/sqlmcp/internal/tools"
	"github.com/vvka-141/sqlmcp/pkg/sqlmcp"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the diagnostic logger. Protocol traffic never goes there.
func WithLogger(logger sqlmcp.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxConcurrency bounds the number of tool calls running at once.
func WithMaxConcurrency(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxConcurrency = n
		}
	}
}

// WithVersion sets the version reported in serverInfo.
func WithVersion(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// WithInstructions overrides the instructions returned from initialize.
func WithInstructions(text string) Option {
	return func(s *Server) {
		s.instructions = text
	}
}

// Server binds a tools.Registry to an MCP server.
type Server struct {
	registry       *tools.Registry
	logger         sqlmcp.Logger
	version        string
	instructions   string
	maxConcurrency int

	mcp   *server.MCPServer
	calls errgroup.Group
}

// NewServer registers every tool of registry. Panics if registry is nil.
func NewServer(registry *tools.Registry, opts ...Option) *Server {
	if registry == nil {
		panic("registry cannot be nil - programming error")
	}

	s := &Server{
		registry:       registry,
		logger:         logging.NewNullLogger(),
		version:        "dev",
		instructions:   registry.Instructions(),
		maxConcurrency: sqlmcp.DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.calls.SetLimit(s.maxConcurrency)

	s.mcp = server.NewMCPServer(sqlmcp.ServerName, s.version,
		server.WithToolCapabilities(false),
		server.WithInstructions(s.instructions),
		server.WithRecovery(),
	)
	for _, t := range registry.Tools() {
		s.mcp.AddTool(Tool(t), s.handler(t.Name))
	}
	return s
}

// Tool converts a registry entry into its advertised form.
func Tool(t *tools.Tool) mcp.Tool {
	return mcp.NewToolWithRawSchema(t.Name, t.Description, t.InputSchema)
}

// Tools returns the surface of registry in advertisement order.
func Tools(registry *tools.Registry) []mcp.Tool {
	entries := registry.Tools()
	out := make([]mcp.Tool, len(entries))
	for i, t := range entries {
		out[i] = Tool(t)
	}
	return out
}

// Serve speaks newline-delimited JSON-RPC on in and out until in is
// exhausted or ctx is cancelled, then waits for calls still running.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	s.logger.Info("Starting SQL MCP server...")

	names := make([]string, 0, len(s.registry.Tools()))
	for _, t := range s.registry.Tools() {
		names = append(names, t.Name)
	}
	s.logger.Verbose("Serving %s for %s (read-only: %t)", strings.Join(names, ", "), s.registry.Driver(), s.registry.ReadOnly())

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(errorWriter{s.logger}, "", 0))

	err := stdio.Listen(ctx, in, out)
	if waitErr := s.calls.Wait(); err == nil {
		err = waitErr
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := s.call(ctx, name, req.GetArguments())
		if err != nil {
			var argErr *tools.ArgumentError
			if errors.As(err, &argErr) {
				return mcp.NewToolResultError(argErr.Error()), nil
			}
			return nil, err
		}
		return mcp.NewToolResultText(text), nil
	}
}

// call runs one tool inside the bounded call group.
func (s *Server) call(ctx context.Context, name string, args map[string]any) (text string, err error) {
	start := time.Now()
	done := make(chan struct{})

	s.calls.Go(func() error {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("Tool %s panicked: %v\n%s", name, r, debug.Stack())
				err = fmt.Errorf("%s: internal error", name)
			}
			close(done)
		}()
		text, err = s.registry.Call(ctx, name, args)
		return nil
	})
	<-done

	s.logger.Verbose("%s finished in %s", name, time.Since(start).Round(time.Millisecond))
	return text, err
}

// errorWriter routes transport errors to the diagnostic logger.
type errorWriter struct {
	logger sqlmcp.Logger
}

func (w errorWriter) Write(p []byte) (int, error) {
	w.logger.Error("%s", strings.TrimRight(string(p), "\n"))
	return len(p), nil
}
