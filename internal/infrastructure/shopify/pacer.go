package shopify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultCallSpacing keeps the engine comfortably under Shopify's 2 req/s
// REST budget.
const DefaultCallSpacing = 500 * time.Millisecond

// Pacer enforces a minimum delay between consecutive upstream calls for each
// connection. Pacing state is keyed per shop domain so one throttled tenant
// never slows another tenant's run.
type Pacer struct {
	spacing time.Duration
	logger  zerolog.Logger

	mu   sync.Mutex
	last map[string]time.Time
}

// NewPacer creates a pacer with the given minimum inter-call spacing. A zero
// or negative spacing falls back to DefaultCallSpacing.
func NewPacer(spacing time.Duration, logger zerolog.Logger) *Pacer {
	if spacing <= 0 {
		spacing = DefaultCallSpacing
	}
	return &Pacer{
		spacing: spacing,
		last:    make(map[string]time.Time),
		logger:  logger,
	}
}

// Acquire blocks until the next call for key is safe to issue.
func (p *Pacer) Acquire(ctx context.Context, key string) error {
	return p.AcquireAfter(ctx, key, 0)
}

// AcquireAfter behaves like Acquire but honors the larger of the default
// spacing and an explicit delay. Callers pass the delay when the upstream
// signals throttling (429 / Retry-After).
func (p *Pacer) AcquireAfter(ctx context.Context, key string, delay time.Duration) error {
	gap := p.spacing
	if delay > gap {
		gap = delay
	}

	p.mu.Lock()
	now := time.Now()
	prev, had := p.last[key]
	at := now
	if had && prev.Add(gap).After(now) {
		at = prev.Add(gap)
	}
	// Reserve the slot before sleeping so a concurrent caller for the same
	// key queues behind this one.
	p.last[key] = at
	p.mu.Unlock()

	wait := at.Sub(now)
	if wait <= 0 {
		return nil
	}
	if delay > 0 {
		p.logger.Debug().
			Str("connection", key).
			Dur("wait", wait).
			Msg("Pacing upstream call with explicit delay")
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		// Give the slot back so the next caller is not paced against a
		// request that was never issued.
		p.mu.Lock()
		if p.last[key].Equal(at) {
			if had {
				p.last[key] = prev
			} else {
				delete(p.last, key)
			}
		}
		p.mu.Unlock()
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
