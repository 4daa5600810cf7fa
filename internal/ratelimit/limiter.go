// Package ratelimit provides request pacing for batch scans.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing fetches globally and per target domain so a batch
// scan does not hammer any single host.
type Limiter struct {
	mu           sync.RWMutex
	limiter      *rate.Limiter
	perDomain    map[string]*rate.Limiter
	defaultRate  rate.Limit
	defaultBurst int
	domainDelay  time.Duration
	lastRequest  map[string]time.Time
}

// NewLimiter creates a new rate limiter.
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter:      rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		perDomain:    make(map[string]*rate.Limiter),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		lastRequest:  make(map[string]time.Time),
	}
}

// Wait blocks until a request is allowed or the context is cancelled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// WaitDomain blocks until a request to a specific domain is allowed.
func (l *Limiter) WaitDomain(ctx context.Context, domain string) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return err
	}

	l.mu.Lock()
	domainLimiter, exists := l.perDomain[domain]
	if !exists {
		domainLimiter = rate.NewLimiter(l.defaultRate, l.defaultBurst)
		l.perDomain[domain] = domainLimiter
	}

	if l.domainDelay > 0 {
		if lastReq, ok := l.lastRequest[domain]; ok {
			elapsed := time.Since(lastReq)
			if elapsed < l.domainDelay {
				l.mu.Unlock()
				select {
				case <-time.After(l.domainDelay - elapsed):
				case <-ctx.Done():
					return ctx.Err()
				}
				l.mu.Lock()
			}
		}
		l.lastRequest[domain] = time.Now()
	}
	l.mu.Unlock()

	return domainLimiter.Wait(ctx)
}

// Allow checks if a request is allowed without blocking.
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// SetDomainDelay sets the minimum delay between requests to the same domain.
func (l *Limiter) SetDomainDelay(delay time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.domainDelay = delay
}

// SetRate updates the global rate limit.
func (l *Limiter) SetRate(requestsPerSecond float64, burst int) {
	l.limiter.SetLimit(rate.Limit(requestsPerSecond))
	l.limiter.SetBurst(burst)

	l.mu.Lock()
	l.defaultRate = rate.Limit(requestsPerSecond)
	l.defaultBurst = burst
	l.mu.Unlock()
}

// Stats returns rate limiter statistics.
func (l *Limiter) Stats() LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return LimiterStats{
		DomainCount:  len(l.perDomain),
		DefaultRate:  float64(l.defaultRate),
		DefaultBurst: l.defaultBurst,
		DomainDelay:  l.domainDelay,
	}
}

// LimiterStats contains rate limiter statistics.
type LimiterStats struct {
	DomainCount  int           `json:"domain_count"`
	DefaultRate  float64       `json:"default_rate"`
	DefaultBurst int           `json:"default_burst"`
	DomainDelay  time.Duration `json:"domain_delay"`
}
