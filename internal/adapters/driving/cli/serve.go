package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pagewise/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/pagewise/internal/adapters/driving/mcp"
)

var (
	serveAddr string
	serveMCP  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serves health, metrics, document submission, status and answers over HTTP.

Endpoints:
  GET  /healthz
  GET  /metrics
  POST /v1/documents
  GET  /v1/documents/{id}/status
  POST /v1/answers

With --mcp the MCP streamable HTTP transport is also served at /mcp.

With the in-memory queue a worker runs in the same process so submitted
documents are processed.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", httpapi.DefaultAddr, "listen address")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "also serve MCP at /mcp")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	s, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	answers, err := s.Answers(ctx)
	if err != nil {
		return err
	}

	server, err := httpapi.NewServer(s.Ingestion, answers, s.Metrics)
	if err != nil {
		return err
	}
	if serveMCP {
		mcpServer, err := mcp.NewServer(&mcp.Ports{Answer: answers, Ingestion: s.Ingestion})
		if err != nil {
			return err
		}
		server.Mount("/mcp", mcpServer.Handler())
	}

	cmd.Printf("Listening on %s\n", serveAddr)
	return runWithInlineWorker(ctx, s, func(ctx context.Context) error {
		return server.Run(ctx, serveAddr)
	})
}

// runWithInlineWorker runs fn, alongside a worker when jobs are only
// visible to this process. The worker stops when fn returns.
func runWithInlineWorker(ctx context.Context, s *Services, fn func(ctx context.Context) error) error {
	if !s.InlineQueue {
		return fn(ctx)
	}

	worker, err := s.Worker(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.Run(gctx)
	})
	g.Go(func() error {
		defer cancel()
		return fn(gctx)
	})
	return g.Wait()
}
