package fetch

import "context"

// Port is a page rendering backend.
//
// Render loads pageURL and returns the document HTML once the page has had
// time to render. Screenshot loads pageURL and writes a full-page PNG to
// path. Close releases the backend; it must be called exactly once on every
// exit path.
type Port interface {
	Render(ctx context.Context, pageURL string) (string, error)
	Screenshot(ctx context.Context, pageURL, path string) error
	Close() error
}

// Observer receives fetch outcomes, typically for metrics.
type Observer interface {
	FetchAttempt(ok bool)
	FetchFailed()
	Screenshot(ok bool)
}

type nopObserver struct{}

func (nopObserver) FetchAttempt(bool) {}
func (nopObserver) FetchFailed()      {}
func (nopObserver) Screenshot(bool)   {}
