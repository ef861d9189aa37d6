// Package ratelimit provides admission control for outbound source calls:
// a token bucket per source plus one global concurrency gate shared by all
// sources. The two primitives are independent and composed in Acquire; the
// dispatch engine never touches either directly.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/helixir/paper-search-service/internal/domain"
)

// Config holds rate limiter settings.
type Config struct {
	// DefaultRPS is the sustained requests-per-second budget applied to
	// sources without an explicit override.
	DefaultRPS float64

	// DefaultBurst is the bucket capacity applied to sources without an
	// explicit override. Zero means a burst equal to ceil(RPS), minimum 1.
	DefaultBurst int

	// MaxConcurrent caps in-flight source calls across all sources
	// combined, independent of per-source budgets.
	MaxConcurrent int64

	// AcquireTimeout bounds how long Acquire waits for admission before
	// failing with a rate-limit timeout.
	AcquireTimeout time.Duration

	// SourceRPS maps source ids to per-source requests-per-second
	// overrides.
	SourceRPS map[string]float64
}

func (c *Config) applyDefaults() {
	if c.DefaultRPS <= 0 {
		c.DefaultRPS = 5
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 10
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
}

// Limiter admits source calls when both the per-source token bucket and the
// global concurrency gate allow one. It is safe for concurrent use.
//
// Admission to the global gate is FIFO: goroutines blocked on the semaphore
// are released in arrival order, so a burst against one source cannot
// starve waiters for another indefinitely.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	global  *semaphore.Weighted
	cfg     Config
}

// New creates a limiter from the given configuration.
func New(cfg Config) *Limiter {
	cfg.applyDefaults()
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		global:  semaphore.NewWeighted(cfg.MaxConcurrent),
		cfg:     cfg,
	}
}

// Acquire blocks until the source's token bucket yields a token and the
// global gate has a free slot, or until the wait bound elapses. On success
// it returns a release func that must be called exactly once when the source
// call completes, errors, or times out; calling it more than once is safe.
//
// If admission does not happen within the configured timeout, Acquire
// returns *domain.RateLimitTimeoutError. If the caller's context is
// cancelled first, its error is returned instead.
func (l *Limiter) Acquire(ctx context.Context, sourceID string) (release func(), err error) {
	start := time.Now()
	waitCtx, cancel := context.WithTimeout(ctx, l.cfg.AcquireTimeout)
	defer cancel()

	// Gate first, bucket second. A failed bucket wait restores its token
	// (or never takes one), and the only thing held at that point is the
	// semaphore slot, which is handed back below. The reverse order would
	// forfeit an already-consumed token whenever the gate timed out, and
	// a rate.Reservation cannot be refunded once its act time has passed.
	// The slot held while pacing is bounded by the acquire timeout.
	if err := l.global.Acquire(waitCtx, 1); err != nil {
		return nil, l.admissionError(ctx, sourceID, start, err)
	}

	if err := l.bucket(sourceID).Wait(waitCtx); err != nil {
		l.global.Release(1)
		return nil, l.admissionError(ctx, sourceID, start, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.global.Release(1) })
	}, nil
}

// admissionError distinguishes caller cancellation from admission timeout.
// rate.Limiter.Wait reports a bounded wait with its own error value rather
// than context.DeadlineExceeded, so the parent context is the only reliable
// signal for who gave up first.
func (l *Limiter) admissionError(ctx context.Context, sourceID string, start time.Time, _ error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &domain.RateLimitTimeoutError{Source: sourceID, Waited: time.Since(start)}
}

// bucket returns the token bucket for a source, creating it on first use.
func (l *Limiter) bucket(sourceID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[sourceID]; ok {
		return b
	}

	rps := l.cfg.DefaultRPS
	if override, ok := l.cfg.SourceRPS[sourceID]; ok && override > 0 {
		rps = override
	}
	burst := l.cfg.DefaultBurst
	if burst <= 0 {
		burst = int(rps)
		if float64(burst) < rps {
			burst++
		}
		if burst < 1 {
			burst = 1
		}
	}

	b := rate.NewLimiter(rate.Limit(rps), burst)
	l.buckets[sourceID] = b
	return b
}

// Tokens returns the current token count of a source's bucket. Useful for
// monitoring and tests.
func (l *Limiter) Tokens(sourceID string) float64 {
	return l.bucket(sourceID).Tokens()
}
