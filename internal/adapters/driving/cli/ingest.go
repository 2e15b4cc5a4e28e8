package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/logger"
)

// statusPollInterval is how often --wait checks document state.
const statusPollInterval = 500 * time.Millisecond

var (
	ingestUser  string
	ingestName  string
	ingestWait  bool
	ingestWatch string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Submit documents for ingestion",
	Long: `Submits documents to the ingestion queue.

Paths may be local files or s3://bucket/key URIs. With the in-memory queue
the documents are processed before the command returns; with redis a
separate 'pagewise worker' processes them and --wait polls until each
document completes or fails.

Use --watch to keep running and submit files added to a directory.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestUser, "user", "u", defaultUser(), "user the documents belong to")
	ingestCmd.Flags().StringVar(&ingestName, "name", "", "display name (single path only)")
	ingestCmd.Flags().BoolVarP(&ingestWait, "wait", "w", false, "wait until processing finishes")
	ingestCmd.Flags().StringVar(&ingestWatch, "watch", "", "directory to watch for new files")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && ingestWatch == "" {
		return errors.New("requires at least one path or --watch")
	}
	if ingestName != "" && len(args) != 1 {
		return errors.New("--name requires exactly one path")
	}

	s, err := services(cmd)
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)

	// Nothing else consumes the in-memory queue, so the worker must be
	// ready before any document is recorded as pending.
	var inline Worker
	if s.InlineQueue {
		if inline, err = s.Worker(ctx); err != nil {
			return fmt.Errorf("cannot process documents: %w", err)
		}
	}

	var ids []string
	for _, path := range args {
		ack, err := submitPath(ctx, s, path, ingestName)
		if err != nil {
			return err
		}
		cmd.Printf("Queued %s as %s\n", path, ack.DocumentID)
		ids = append(ids, ack.DocumentID)
	}

	if ingestWatch != "" {
		return watchAndIngest(cmd, s, ingestWatch, inline)
	}

	switch {
	case inline != nil:
		if err := drainInline(ctx, s, inline); err != nil {
			return err
		}
	case ingestWait:
		if err := waitForTerminal(ctx, s, ids); err != nil {
			return err
		}
	default:
		return nil
	}
	return printStates(cmd, s, ids)
}

// submitPath resolves a command line path and submits it.
func submitPath(ctx context.Context, s *Services, path, name string) (*domain.SubmitAck, error) {
	storagePath := path
	if !strings.Contains(path, "://") && s.Resolve != nil {
		resolved, err := s.Resolve(path)
		if err != nil {
			return nil, err
		}
		storagePath = resolved
	}
	ack, err := s.Ingestion.Submit(ctx, domain.SubmitRequest{
		UserID:      ingestUser,
		Name:        name,
		StoragePath: storagePath,
	})
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", path, err)
	}
	return ack, nil
}

// drainInline closes the in-process queue and runs worker until every
// queued job has been processed.
func drainInline(ctx context.Context, s *Services, worker Worker) error {
	if err := s.CloseQueue(); err != nil {
		return err
	}
	return worker.Run(ctx)
}

func waitForTerminal(ctx context.Context, s *Services, ids []string) error {
	ticker := time.NewTicker(statusPollInterval)
	defer ticker.Stop()

	pending := append([]string(nil), ids...)
	for len(pending) > 0 {
		remaining := pending[:0]
		for _, id := range pending {
			doc, err := s.Ingestion.Status(ctx, id)
			if err != nil {
				return err
			}
			if !doc.State.IsTerminal() {
				remaining = append(remaining, id)
			}
		}
		pending = remaining
		if len(pending) == 0 {
			break
		}
		logger.Debug("Waiting for %d documents", len(pending))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

// printStates prints the final state of each document and fails if any failed.
func printStates(cmd *cobra.Command, s *Services, ids []string) error {
	failed := 0
	for _, id := range ids {
		doc, err := s.Ingestion.Status(commandContext(cmd), id)
		if err != nil {
			return err
		}
		cmd.Println(formatState(doc))
		if doc.State.Status == domain.StatusFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(ids))
	}
	return nil
}

func formatState(doc *domain.DocumentRecord) string {
	st := doc.State
	switch st.Status {
	case domain.StatusCompleted:
		return fmt.Sprintf("%s  %s  completed (%d pages, %d chunks)", doc.ID, doc.Name, st.TotalPages, st.TotalChunks)
	case domain.StatusFailed:
		return fmt.Sprintf("%s  %s  %s: %s", doc.ID, doc.Name, st.Stage, st.ErrorMessage)
	case domain.StatusProcessing:
		return fmt.Sprintf("%s  %s  processing (%s)", doc.ID, doc.Name, st.Stage)
	default:
		return fmt.Sprintf("%s  %s  %s", doc.ID, doc.Name, st.Status)
	}
}

// defaultUser is PAGEWISE_USER, then the login name, then "default".
func defaultUser() string {
	for _, key := range []string{"PAGEWISE_USER", "USER", "USERNAME"} {
		if u := strings.TrimSpace(os.Getenv(key)); u != "" {
			return u
		}
	}
	return "default"
}

// isHidden returns true if any element of the path starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if len(part) > 1 && strings.HasPrefix(part, ".") && part != ".." {
			return true
		}
	}
	return false
}
