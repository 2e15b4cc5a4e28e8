package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pagewise/internal/logger"
)

// Version is reported to clients during initialisation.
const Version = "0.1.0"

const (
	implementationName = "pagewise"
	readHeaderTimeout  = 10 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Server exposes question answering, and optionally ingestion, over MCP.
type Server struct {
	ports  *Ports
	server *mcp.Server
}

// NewServer validates ports and registers the tools and resources they support.
func NewServer(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, fmt.Errorf("validating ports: %w", err)
	}

	impl := &mcp.Implementation{Name: implementationName, Version: Version}
	s := &Server{ports: ports, server: mcp.NewServer(impl, nil)}
	s.registerTools()
	s.registerResources()
	return s, nil
}

// Run speaks the protocol on stdin/stdout until ctx ends or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Handler returns the streamable HTTP transport for mounting on another
// router.
func (s *Server) Handler() http.Handler {
	return mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return s.server }, nil)
}

// RunHTTP listens on addr with the streamable HTTP transport and shuts down
// when ctx ends.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.Info("MCP server listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down MCP server: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
