// Package redis provides an ingestion queue shared between processes through
// a Redis list. Producers LPUSH JSON-encoded jobs and consumers BRPOP them.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/pagewise/internal/core/domain"
	"github.com/custodia-labs/pagewise/internal/core/ports/driven"
)

// Verify interface implementation.
var _ driven.IngestionQueue = (*Queue)(nil)

// Default configuration values.
const (
	DefaultKey         = "pagewise:ingest"
	DefaultPollTimeout = 2 * time.Second
)

// Config holds configuration for the Redis queue.
type Config struct {
	// URL is a redis:// connection URL.
	URL string

	// Key is the list the jobs are stored in.
	Key string

	// PollTimeout bounds each BRPOP so Close and cancellation are noticed.
	PollTimeout time.Duration
}

// Queue is a Redis-backed driven.IngestionQueue.
type Queue struct {
	client      redis.UniversalClient
	key         string
	pollTimeout time.Duration
	ownsClient  bool
	closed      atomic.Bool
}

// New connects to Redis using cfg.URL and verifies the connection.
func New(ctx context.Context, cfg Config) (*Queue, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing redis url: %v", domain.ErrInvalidInput, err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	q := NewWithClient(client, cfg)
	q.ownsClient = true
	return q, nil
}

// NewWithClient wraps an existing client. The caller keeps ownership of it.
func NewWithClient(client redis.UniversalClient, cfg Config) *Queue {
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	return &Queue{
		client:      client,
		key:         cfg.Key,
		pollTimeout: cfg.PollTimeout,
	}
}

// Enqueue pushes a job onto the list.
func (q *Queue) Enqueue(ctx context.Context, job domain.IngestionJob) error {
	if q.closed.Load() {
		return domain.ErrQueueClosed
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("enqueueing job %s: %w", job.DocumentID, err)
	}
	return nil
}

// Dequeue pops the oldest job, polling until one arrives. Once this queue is
// closed it returns ErrQueueClosed and leaves remaining jobs for other consumers.
func (q *Queue) Dequeue(ctx context.Context) (domain.IngestionJob, error) {
	for {
		if q.closed.Load() {
			return domain.IngestionJob{}, domain.ErrQueueClosed
		}

		res, err := q.client.BRPop(ctx, q.pollTimeout, q.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				return domain.IngestionJob{}, ctx.Err()
			}
			if q.closed.Load() {
				return domain.IngestionJob{}, domain.ErrQueueClosed
			}
			return domain.IngestionJob{}, fmt.Errorf("dequeueing job: %w", err)
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			return domain.IngestionJob{}, fmt.Errorf("dequeueing job: unexpected reply %v", res)
		}
		var job domain.IngestionJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.IngestionJob{}, fmt.Errorf("decoding job: %w", err)
		}
		return job, nil
	}
}

// Len returns the number of jobs waiting in Redis.
func (q *Queue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close stops this queue handle. The client is closed only if New created it.
func (q *Queue) Close() error {
	if q.closed.Swap(true) {
		return nil
	}
	if q.ownsClient {
		return q.client.Close()
	}
	return nil
}
