package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

func TestDefaultPolicy_Local(t *testing.T) {
	p := DefaultPolicy(domain.AIProviderOllama)

	assert.Equal(t, 3, p.MaxRetries)
	assert.Equal(t, 30*time.Second, p.Timeout)
	assert.Equal(t, 50, p.MaxBatchSize)
	assert.Equal(t, 100*time.Millisecond, p.BatchDelay)
	assert.Zero(t, p.RatePerSecond)
	assert.Zero(t, p.BreakerFailures)
}

func TestDefaultPolicy_Remote(t *testing.T) {
	for _, provider := range []domain.AIProvider{domain.AIProviderOpenAI, domain.AIProviderAnthropic} {
		p := DefaultPolicy(provider)

		assert.Equal(t, 5, p.MaxRetries, provider)
		assert.Equal(t, 60*time.Second, p.Timeout, provider)
		assert.Equal(t, 100, p.MaxBatchSize, provider)
		assert.Equal(t, 50*time.Millisecond, p.BatchDelay, provider)
		assert.InDelta(t, 10.0, p.RatePerSecond, 1e-9, provider)
		assert.Equal(t, uint32(5), p.BreakerFailures, provider)
		assert.Equal(t, 30*time.Second, p.BreakerCooldown, provider)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{RetryDelay: 100 * time.Millisecond}

	assert.Equal(t, time.Duration(0), p.backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.backoff(1))
	assert.Equal(t, 400*time.Millisecond, p.backoff(2))
	assert.Equal(t, 800*time.Millisecond, p.backoff(3))
}

func TestPolicy_Normalised(t *testing.T) {
	p := Policy{RatePerSecond: 2, BreakerFailures: 3, RetryDelay: -time.Second}.normalised()

	assert.Equal(t, 1, p.MaxRetries)
	assert.Equal(t, time.Duration(0), p.RetryDelay)
	assert.Equal(t, localTimeout, p.Timeout)
	assert.Equal(t, 1, p.MaxBatchSize)
	assert.Equal(t, 1, p.Burst)
	assert.Equal(t, remoteBreakerCooldown, p.BreakerCooldown)
}
