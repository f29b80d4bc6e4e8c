package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultTimeout    = 30 * time.Second
	DefaultBackoff    = time.Second
)

// Retrier fetches pages through a Port, retrying failed renders.
//
// After the n-th failed attempt (counting from zero) it waits backoff*2^n
// before the next one. No wait follows the final attempt.
type Retrier struct {
	port       Port
	maxRetries int
	timeout    time.Duration
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	observer   Observer
	logger     *slog.Logger
}

// RetrierOption configures a Retrier.
type RetrierOption func(*Retrier)

// WithMaxRetries sets the total number of render attempts per page.
func WithMaxRetries(n int) RetrierOption {
	return func(r *Retrier) {
		r.maxRetries = max(n, 1)
	}
}

// WithTimeout sets the deadline of a single attempt.
func WithTimeout(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBackoff sets the unit of the exponential backoff schedule.
func WithBackoff(d time.Duration) RetrierOption {
	return func(r *Retrier) {
		r.backoff = max(d, 0)
	}
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) RetrierOption {
	return func(r *Retrier) {
		if sleep != nil {
			r.sleep = sleep
		}
	}
}

// WithObserver sets the receiver of fetch outcomes.
func WithObserver(o Observer) RetrierOption {
	return func(r *Retrier) {
		if o != nil {
			r.observer = o
		}
	}
}

// WithLogger sets the logger used for failed attempts.
func WithLogger(logger *slog.Logger) RetrierOption {
	return func(r *Retrier) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRetrier wraps port with the retry policy.
func NewRetrier(port Port, opts ...RetrierOption) *Retrier {
	r := &Retrier{
		port:       port,
		maxRetries: DefaultMaxRetries,
		timeout:    DefaultTimeout,
		backoff:    DefaultBackoff,
		sleep:      Sleep,
		observer:   nopObserver{},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch renders pageURL, retrying up to the configured number of attempts.
// The returned error wraps ErrFetchFailed and the last attempt's error.
// Cancelling ctx ends the loop early.
func (r *Retrier) Fetch(ctx context.Context, pageURL string) (string, error) {
	var lastErr error
	attempts := 0
	for attempt := range r.maxRetries {
		attempts++
		body, err := r.render(ctx, pageURL)
		r.observer.FetchAttempt(err == nil)
		if err == nil {
			return body, nil
		}
		lastErr = err
		r.logger.Warn("fetch attempt failed",
			"url", pageURL,
			"attempt", attempt+1,
			"max_retries", r.maxRetries,
			"error", err,
		)

		if attempt == r.maxRetries-1 || ctx.Err() != nil {
			break
		}
		if err := r.sleep(ctx, r.backoff<<attempt); err != nil {
			break
		}
	}

	r.observer.FetchFailed()
	return "", fmt.Errorf("%w: %s after %d attempt(s): %w", ErrFetchFailed, pageURL, attempts, lastErr)
}

// render performs a single attempt bounded by the per-attempt timeout.
func (r *Retrier) render(ctx context.Context, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.port.Render(ctx, pageURL)
}

// CaptureScreenshot makes a single attempt to capture pageURL into path.
// Failures are logged and reported as false; they never propagate.
func (r *Retrier) CaptureScreenshot(ctx context.Context, pageURL, path string) bool {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	if err := r.port.Screenshot(ctx, pageURL, path); err != nil {
		r.observer.Screenshot(false)
		r.logger.Error("screenshot failed", "url", pageURL, "path", path, "error", err)
		return false
	}
	r.observer.Screenshot(true)
	return true
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
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
