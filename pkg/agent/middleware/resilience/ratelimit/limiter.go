// Package ratelimit provides per-provider request rate limiting for LLM clients.
package ratelimit

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/asouza/anonther-ai-based-test-generator-tool/pkg/config"
)

// Limiter blocks until a request may be sent.
type Limiter interface {
	Wait(ctx context.Context) error
}

// LimiterStats represents current rate limiter statistics.
type LimiterStats struct {
	Provider          string  `json:"provider"`
	RequestsPerMinute int     `json:"requests_per_minute"`
	Burst             int     `json:"burst"`
	AvailableTokens   float64 `json:"available_tokens"`
	Unlimited         bool    `json:"unlimited"`
}

// ProviderLimiterMap holds one limiter per API provider so that every client
// talking to the same provider shares its budget.
type ProviderLimiterMap struct {
	mu       sync.Mutex
	limits   map[string]config.ProviderLimits
	limiters map[string]*rate.Limiter
}

// NewProviderLimiterMap creates limiters from the configured limits. Providers
// missing from limits fall back to config.ProviderDefaults.
func NewProviderLimiterMap(limits map[string]config.ProviderLimits) *ProviderLimiterMap {
	merged := make(map[string]config.ProviderLimits, len(config.ProviderDefaults))
	for provider, l := range config.ProviderDefaults {
		merged[provider] = l
	}
	for provider, l := range limits {
		merged[provider] = l
	}
	return &ProviderLimiterMap{
		limits:   merged,
		limiters: make(map[string]*rate.Limiter),
	}
}

// GetLimiter returns the shared limiter for provider, creating it on first use.
// A provider configured with zero requests per minute is unlimited.
func (m *ProviderLimiterMap) GetLimiter(provider string) (Limiter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lim, err := m.limiterLocked(provider)
	if err != nil {
		return nil, err
	}
	return lim, nil
}

func (m *ProviderLimiterMap) limiterLocked(provider string) (*rate.Limiter, error) {
	if lim, ok := m.limiters[provider]; ok {
		return lim, nil
	}
	l, ok := m.limits[provider]
	if !ok {
		return nil, fmt.Errorf("no rate limit configured for provider %q", provider)
	}
	lim := newLimiter(l)
	m.limiters[provider] = lim
	return lim, nil
}

func newLimiter(l config.ProviderLimits) *rate.Limiter {
	if l.RequestsPerMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := l.Burst
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(float64(l.RequestsPerMinute)/60.0), burst)
}

// GetStats returns statistics for provider.
func (m *ProviderLimiterMap) GetStats(provider string) (LimiterStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lim, err := m.limiterLocked(provider)
	if err != nil {
		return LimiterStats{}, err
	}
	l := m.limits[provider]
	return LimiterStats{
		Provider:          provider,
		RequestsPerMinute: l.RequestsPerMinute,
		Burst:             lim.Burst(),
		AvailableTokens:   lim.Tokens(),
		Unlimited:         lim.Limit() == rate.Inf,
	}, nil
}
