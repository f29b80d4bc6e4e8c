package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pauser waits between page fetches.
type Pauser interface {
	Pause(ctx context.Context) error
}

// RandomDelay pauses for a uniformly random duration in [Min, Max].
type RandomDelay struct {
	Min time.Duration
	Max time.Duration
}

// NewRandomDelay returns a RandomDelay. Bounds are swapped if given in the
// wrong order and negative bounds are treated as zero.
func NewRandomDelay(minDelay, maxDelay time.Duration) *RandomDelay {
	minDelay, maxDelay = max(minDelay, 0), max(maxDelay, 0)
	if minDelay > maxDelay {
		minDelay, maxDelay = maxDelay, minDelay
	}
	return &RandomDelay{Min: minDelay, Max: maxDelay}
}

// Next returns the duration of the next pause.
func (d *RandomDelay) Next() time.Duration {
	span := d.Max - d.Min
	if span <= 0 {
		return d.Min
	}
	return d.Min + rand.N(span+1) //nolint:gosec // jitter does not need a CSPRNG
}

// Pause sleeps for Next() or until ctx is done.
func (d *RandomDelay) Pause(ctx context.Context) error {
	return sleep(ctx, d.Next())
}

// sleep blocks for d unless ctx finishes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// noPause is used when no politeness delay is configured.
type noPause struct{}

func (noPause) Pause(ctx context.Context) error { return ctx.Err() }
