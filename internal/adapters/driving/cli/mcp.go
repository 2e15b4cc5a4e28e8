package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/adapters/driving/mcp"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol integration",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve pagewise tools to an MCP client",
	Long: `Exposes the ask, document_status and ingest_document tools and the
pagewise://documents/{id} resource to an MCP client.

The protocol runs over stdin and stdout unless --port is given, in which
case the streamable HTTP transport listens on that port.

Client entry:
  "pagewise": {"command": "pagewise", "args": ["mcp", "serve"]}`,
	Example: `  pagewise mcp serve
  pagewise mcp serve --port 8081`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve HTTP on this port instead of stdio")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	s, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	answers, err := s.Answers(ctx)
	if err != nil {
		return err
	}
	server, err := mcp.NewServer(&mcp.Ports{Answer: answers, Ingestion: s.Ingestion})
	if err != nil {
		return err
	}

	serve := server.Run
	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		serve = func(ctx context.Context) error { return server.RunHTTP(ctx, addr) }
	}
	return runWithInlineWorker(ctx, s, serve)
}
