package ai

import (
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// Policy controls how calls to one provider are retried, limited and batched.
type Policy struct {
	// MaxRetries is the total number of attempts per call.
	MaxRetries int

	// RetryDelay is the backoff base; attempt n waits RetryDelay * 2^n.
	RetryDelay time.Duration

	// Timeout bounds a single attempt.
	Timeout time.Duration

	// MaxBatchSize is the largest number of texts sent in one batch call.
	MaxBatchSize int

	// BatchDelay is the pause between consecutive sub-batches.
	BatchDelay time.Duration

	// RatePerSecond limits request rate. Zero disables limiting.
	RatePerSecond float64
	Burst         int

	// BreakerFailures is the number of consecutive failures that opens the
	// circuit. Zero disables the breaker.
	BreakerFailures uint32
	BreakerCooldown time.Duration

	// CostPer1KTokens is used for cost accounting in provider stats.
	CostPer1KTokens float64
}

// Default policy values.
const (
	DefaultRetryDelay = 500 * time.Millisecond

	localMaxRetries   = 3
	localTimeout      = 30 * time.Second
	localMaxBatchSize = 50
	localBatchDelay   = 100 * time.Millisecond

	remoteMaxRetries      = 5
	remoteTimeout         = 60 * time.Second
	remoteMaxBatchSize    = 100
	remoteBatchDelay      = 50 * time.Millisecond
	remoteRatePerSecond   = 10
	remoteBurst           = 10
	remoteBreakerFailures = 5
	remoteBreakerCooldown = 30 * time.Second
)

// DefaultPolicy returns the policy for a provider. Local providers get
// fewer retries, shorter timeouts and smaller batches. Remote providers are
// additionally rate limited and guarded by a circuit breaker.
func DefaultPolicy(provider domain.AIProvider) Policy {
	if provider.IsLocal() {
		return Policy{
			MaxRetries:   localMaxRetries,
			RetryDelay:   DefaultRetryDelay,
			Timeout:      localTimeout,
			MaxBatchSize: localMaxBatchSize,
			BatchDelay:   localBatchDelay,
		}
	}
	return Policy{
		MaxRetries:      remoteMaxRetries,
		RetryDelay:      DefaultRetryDelay,
		Timeout:         remoteTimeout,
		MaxBatchSize:    remoteMaxBatchSize,
		BatchDelay:      remoteBatchDelay,
		RatePerSecond:   remoteRatePerSecond,
		Burst:           remoteBurst,
		BreakerFailures: remoteBreakerFailures,
		BreakerCooldown: remoteBreakerCooldown,
	}
}

// normalised fills zero fields so a partially specified policy is usable.
func (p Policy) normalised() Policy {
	if p.MaxRetries < 1 {
		p.MaxRetries = 1
	}
	if p.RetryDelay < 0 {
		p.RetryDelay = 0
	}
	if p.Timeout <= 0 {
		p.Timeout = localTimeout
	}
	if p.MaxBatchSize < 1 {
		p.MaxBatchSize = 1
	}
	if p.RatePerSecond > 0 && p.Burst < 1 {
		p.Burst = 1
	}
	if p.BreakerFailures > 0 && p.BreakerCooldown <= 0 {
		p.BreakerCooldown = remoteBreakerCooldown
	}
	return p
}

// backoff returns the wait before the given zero-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return p.RetryDelay * time.Duration(1<<uint(attempt))
}
