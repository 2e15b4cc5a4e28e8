package cli

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/pagewise/internal/logger"
)

// watchSettle is how long a file must be quiet before it is submitted.
const watchSettle = time.Second

// watchAndIngest submits files created or rewritten under dir until the
// command context is cancelled. A non-nil worker runs alongside the
// watcher.
func watchAndIngest(cmd *cobra.Command, s *Services, dir string, worker Worker) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("watch %s: not a directory", dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var wg sync.WaitGroup
	if worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := worker.Run(ctx); err != nil {
				logger.Warn("worker stopped: %v", err)
			}
		}()
	}
	defer wg.Wait()

	cmd.Printf("Watching %s for new documents (Ctrl+C to stop)\n", dir)

	pending := newSettler(watchSettle)
	ticker := time.NewTicker(watchSettle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if path := ingestablePath(event); path != "" {
				pending.touch(path, time.Now())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		case now := <-ticker.C:
			for _, path := range pending.ready(now) {
				ack, err := submitPath(ctx, s, path, "")
				if err != nil {
					logger.Warn("%v", err)
					continue
				}
				cmd.Printf("Queued %s as %s\n", path, ack.DocumentID)
			}
		}
	}
}

// ingestablePath returns the file to submit for an event, or "" when the
// event should be ignored.
func ingestablePath(event fsnotify.Event) string {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return ""
	}
	if isHidden(event.Name) {
		return ""
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return ""
	}
	return event.Name
}

// settler releases paths once they have seen no events for a quiet period.
type settler struct {
	quiet time.Duration
	seen  map[string]time.Time
}

func newSettler(quiet time.Duration) *settler {
	return &settler{quiet: quiet, seen: make(map[string]time.Time)}
}

func (s *settler) touch(path string, at time.Time) {
	s.seen[path] = at
}

// ready returns and forgets the paths quiet since before now-quiet.
func (s *settler) ready(now time.Time) []string {
	var out []string
	for path, at := range s.seen {
		if now.Sub(at) >= s.quiet {
			out = append(out, path)
			delete(s.seen, path)
		}
	}
	return out
}
