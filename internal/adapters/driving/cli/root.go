// Package cli provides the pagewise command line interface.
package cli

import (
	"context"
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driving"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// version is set at build time with -ldflags "-X .../cli.version=...".
var version = "dev"

// Worker consumes queued ingestion jobs.
type Worker interface {
	Run(ctx context.Context) error
	RecoverStale(ctx context.Context) (int, error)
}

// Services is what the commands drive. Providers are resolved lazily so
// commands that never embed or generate work without a model backend.
type Services struct {
	Ingestion driving.IngestionService
	Answers   func(ctx context.Context) (driving.AnswerService, error)
	Worker    func(ctx context.Context) (Worker, error)

	// CloseQueue stops the queue accepting jobs so a worker drains and exits.
	CloseQueue func() error

	// InlineQueue is true when queued jobs are only visible to this process.
	InlineQueue bool

	// Resolve turns a command line path into a storage path.
	Resolve func(path string) (string, error)

	// ProviderStats reports provider call statistics.
	ProviderStats func() map[string]domain.ProviderStats

	// Metrics is the registry exposed on /metrics.
	Metrics prometheus.Gatherer
}

// BootstrapFunc builds the services for a data directory. The returned
// func releases them.
type BootstrapFunc func(ctx context.Context, dataDir string) (*Services, func() error, error)

var (
	dataDirFlag string
	verboseFlag bool

	bootstrap   BootstrapFunc
	svc         *Services
	closeFunc   func() error
	errNoConfig = errors.New("services not configured")
)

var rootCmd = &cobra.Command{
	Use:   "pagewise",
	Short: "Ask questions of your documents",
	Long: `pagewise ingests documents into a vector store and answers questions
from them with citations to the pages the answer came from.

Documents are downloaded, extracted, chunked, embedded and stored by
workers consuming an ingestion queue.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verboseFlag)
	},
}

func init() {
	rootCmd.SetOut(os.Stdout)
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "data directory (default ~/.pagewise)")
}

// SetBootstrap sets the function used to build services on first use.
func SetBootstrap(fn BootstrapFunc) {
	bootstrap = fn
}

// Execute runs the root command and releases any services it built.
func Execute(ctx context.Context) error {
	defer func() {
		if closeFunc != nil {
			if err := closeFunc(); err != nil {
				logger.Warn("shutdown: %v", err)
			}
			closeFunc = nil
		}
		logger.Sync()
	}()
	return rootCmd.ExecuteContext(ctx)
}

// services returns the wired services, building them on first call.
func services(cmd *cobra.Command) (*Services, error) {
	if svc != nil {
		return svc, nil
	}
	if bootstrap == nil {
		return nil, errNoConfig
	}
	s, closer, err := bootstrap(commandContext(cmd), dataDirFlag)
	if err != nil {
		return nil, err
	}
	svc, closeFunc = s, closer
	return svc, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
