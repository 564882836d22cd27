package utils

import (
	"context"
	"sync"
	"time"
)

// Pacer enforces a minimum interval between consecutive submissions so the
// target site is not hit with back-to-back form posts.
type Pacer struct {
	interval time.Duration

	mu   sync.Mutex
	last time.Time
}

// NewPacer creates a Pacer with the given minimum interval in milliseconds.
// Zero disables pacing.
func NewPacer(intervalMs int) *Pacer {
	return &Pacer{interval: time.Duration(intervalMs) * time.Millisecond}
}

// Wait blocks until the interval since the previous Wait has elapsed.
func (p *Pacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.last.IsZero() {
		if elapsed := time.Since(p.last); elapsed < p.interval {
			if err := sleepContext(ctx, p.interval-elapsed); err != nil {
				return err
			}
		}
	}
	p.last = time.Now()
	return nil
}
