package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"
)

// scriptedPort fails the first failures renders and then succeeds.
type scriptedPort struct {
	mu            sync.Mutex
	failures      int
	calls         int
	screenshotErr error
	deadlines     []bool
}

func (p *scriptedPort) Render(ctx context.Context, pageURL string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	_, ok := ctx.Deadline()
	p.deadlines = append(p.deadlines, ok)
	if p.calls <= p.failures {
		return "", errors.New("connection refused")
	}
	return "<html>" + pageURL + "</html>", nil
}

func (p *scriptedPort) Screenshot(context.Context, string, string) error {
	return p.screenshotErr
}

func (p *scriptedPort) Close() error { return nil }

// recordSleeps returns a sleeper that records durations without waiting.
func recordSleeps(out *[]time.Duration) func(context.Context, time.Duration) error {
	return func(ctx context.Context, d time.Duration) error {
		*out = append(*out, d)
		return ctx.Err()
	}
}

type countingObserver struct {
	attempts, okAttempts, failed, shots, okShots int
}

func (o *countingObserver) FetchAttempt(ok bool) {
	o.attempts++
	if ok {
		o.okAttempts++
	}
}
func (o *countingObserver) FetchFailed() { o.failed++ }
func (o *countingObserver) Screenshot(ok bool) {
	o.shots++
	if ok {
		o.okShots++
	}
}

func TestRetrier_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("first attempt succeeds", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		port := &scriptedPort{}
		r := NewRetrier(port, WithSleeper(recordSleeps(&sleeps)))

		body, err := r.Fetch(context.Background(), "http://x.onion")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if body != "<html>http://x.onion</html>" {
			t.Errorf("unexpected body %q", body)
		}
		if port.calls != 1 || len(sleeps) != 0 {
			t.Errorf("expected one call without sleeping, got %d calls and %v", port.calls, sleeps)
		}
		if !slices.Equal(port.deadlines, []bool{true}) {
			t.Error("expected each attempt to carry a deadline")
		}
	})

	t.Run("succeeds on third attempt after backing off", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		port := &scriptedPort{failures: 2}
		obs := &countingObserver{}
		r := NewRetrier(port, WithSleeper(recordSleeps(&sleeps)), WithObserver(obs))

		if _, err := r.Fetch(context.Background(), "http://x.onion"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if want := []time.Duration{time.Second, 2 * time.Second}; !slices.Equal(sleeps, want) {
			t.Errorf("sleeps = %v, want %v", sleeps, want)
		}
		if obs.attempts != 3 || obs.okAttempts != 1 || obs.failed != 0 {
			t.Errorf("unexpected observations: %+v", obs)
		}
	})

	t.Run("all attempts fail", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		port := &scriptedPort{failures: 100}
		obs := &countingObserver{}
		r := NewRetrier(port, WithSleeper(recordSleeps(&sleeps)), WithObserver(obs))

		_, err := r.Fetch(context.Background(), "http://x.onion")
		if !errors.Is(err, ErrFetchFailed) {
			t.Fatalf("expected ErrFetchFailed, got %v", err)
		}
		if !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("expected cause in error, got %v", err)
		}
		if port.calls != 3 {
			t.Errorf("expected 3 attempts, got %d", port.calls)
		}
		if want := []time.Duration{time.Second, 2 * time.Second}; !slices.Equal(sleeps, want) {
			t.Errorf("expected no sleep after the final attempt, got %v", sleeps)
		}
		if obs.failed != 1 {
			t.Errorf("expected one final failure, got %d", obs.failed)
		}
	})

	t.Run("custom retries and backoff unit", func(t *testing.T) {
		t.Parallel()

		var sleeps []time.Duration
		port := &scriptedPort{failures: 100}
		r := NewRetrier(port,
			WithMaxRetries(4),
			WithBackoff(10*time.Millisecond),
			WithSleeper(recordSleeps(&sleeps)),
		)

		_, _ = r.Fetch(context.Background(), "http://x.onion")
		want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}
		if port.calls != 4 || !slices.Equal(sleeps, want) {
			t.Errorf("calls=%d sleeps=%v, want 4 and %v", port.calls, sleeps, want)
		}
	})

	t.Run("zero retries still makes one attempt", func(t *testing.T) {
		t.Parallel()

		port := &scriptedPort{failures: 100}
		_, _ = NewRetrier(port, WithMaxRetries(0)).Fetch(context.Background(), "http://x.onion")
		if port.calls != 1 {
			t.Errorf("expected 1 attempt, got %d", port.calls)
		}
	})

	t.Run("cancellation stops retrying", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		port := &scriptedPort{failures: 100}
		sleeper := func(context.Context, time.Duration) error {
			cancel()
			return context.Canceled
		}
		_, err := NewRetrier(port, WithSleeper(sleeper)).Fetch(ctx, "http://x.onion")
		if !errors.Is(err, ErrFetchFailed) || port.calls != 1 {
			t.Errorf("expected a single attempt, got %d (err %v)", port.calls, err)
		}
	})
}

func TestRetrier_CaptureScreenshot(t *testing.T) {
	t.Parallel()

	obs := &countingObserver{}
	ok := NewRetrier(&scriptedPort{}, WithObserver(obs)).CaptureScreenshot(context.Background(), "http://x.onion", "x.png")
	if !ok {
		t.Error("expected success")
	}

	failing := &scriptedPort{screenshotErr: errors.New("boom")}
	if NewRetrier(failing, WithObserver(obs)).CaptureScreenshot(context.Background(), "http://x.onion", "x.png") {
		t.Error("expected failure to be reported as false")
	}
	if obs.shots != 2 || obs.okShots != 1 {
		t.Errorf("unexpected observations: %+v", obs)
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestHTTPPort(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ua":
			_, _ = w.Write([]byte(r.Header.Get("User-Agent")))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("<title>not found</title>"))
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		}
	}))
	t.Cleanup(server.Close)

	port := NewHTTPPort(server.Client(), WithUserAgent("TestAgent/1.0"), WithMaxBodySize(10))
	t.Cleanup(func() { _ = port.Close() })

	t.Run("sends user agent", func(t *testing.T) {
		t.Parallel()

		body, err := port.Render(context.Background(), server.URL+"/ua")
		if err != nil || body != "TestAgent/" {
			t.Errorf("expected truncated user agent, got %q (err %v)", body, err)
		}
	})

	t.Run("limits body size", func(t *testing.T) {
		t.Parallel()

		body, err := port.Render(context.Background(), server.URL+"/")
		if err != nil || len(body) != 10 {
			t.Errorf("expected 10 bytes, got %d (err %v)", len(body), err)
		}
	})

	t.Run("client errors are pages", func(t *testing.T) {
		t.Parallel()

		if _, err := port.Render(context.Background(), server.URL+"/missing"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("server errors fail", func(t *testing.T) {
		t.Parallel()

		if _, err := port.Render(context.Background(), server.URL+"/broken"); !errors.Is(err, ErrServerError) {
			t.Errorf("expected ErrServerError, got %v", err)
		}
	})

	t.Run("no screenshots", func(t *testing.T) {
		t.Parallel()

		if err := port.Screenshot(context.Background(), server.URL, "x.png"); !errors.Is(err, ErrScreenshotUnsupported) {
			t.Errorf("expected ErrScreenshotUnsupported, got %v", err)
		}
	})
}
