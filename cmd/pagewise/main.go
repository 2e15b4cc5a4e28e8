// Command pagewise ingests documents and answers questions from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/pagewise/internal/adapters/driving/cli"
	"github.com/custodia-labs/pagewise/internal/app"
	"github.com/custodia-labs/pagewise/internal/config"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cli.SetBootstrap(bootstrap)
	err := cli.Execute(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// bootstrap loads configuration for dataDir and wires the application.
func bootstrap(ctx context.Context, dataDir string) (*cli.Services, func() error, error) {
	cfg, err := config.Load(dataDir)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	return &cli.Services{
		Ingestion: a.Ingestion,
		Answers: func(ctx context.Context) (driving.AnswerService, error) {
			answers, err := a.Answers(ctx)
			if err != nil {
				return nil, err
			}
			return answers, nil
		},
		Worker: func(ctx context.Context) (cli.Worker, error) {
			worker, err := a.Worker(ctx)
			if err != nil {
				return nil, err
			}
			return worker, nil
		},
		CloseQueue:  a.Queue.Close,
		InlineQueue: a.MemoryQueue(),
		// Command line paths are relative to the working directory.
		Resolve: func(path string) (string, error) {
			abs, err := filepath.Abs(path)
			if err != nil {
				return "", err
			}
			return a.Local.Resolve(abs)
		},
		ProviderStats: a.ProviderStats,
		Metrics:       a.Metrics,
	}, a.Close, nil
}
