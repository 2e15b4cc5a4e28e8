package cli

import (
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process queued documents",
	Long: `Consumes the ingestion queue until interrupted.

Documents left in processing by a previous run are first marked failed
at the stage they were in so they can be resubmitted. A document that has
started processing is always finished, even after Ctrl+C.`,
	Args: cobra.NoArgs,
	RunE: runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	s, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	worker, err := s.Worker(ctx)
	if err != nil {
		return err
	}

	recovered, err := worker.RecoverStale(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		cmd.Printf("Marked %d interrupted documents as failed\n", recovered)
	}

	if s.InlineQueue {
		cmd.Println("Warning: the in-memory queue only receives jobs submitted by this process")
	}
	cmd.Println("Worker running (Ctrl+C to stop)")
	return worker.Run(ctx)
}
