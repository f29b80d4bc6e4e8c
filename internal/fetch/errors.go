package fetch

import "errors"

var (
	// ErrFetchFailed is returned by Retrier.Fetch once every attempt failed.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrBackendInit is returned when a Port cannot be created. A crawl cannot
	// start without a Port, so this error aborts the run.
	ErrBackendInit = errors.New("fetch backend initialization failed")

	// ErrScreenshotUnsupported is returned by Ports that cannot capture pages.
	ErrScreenshotUnsupported = errors.New("screenshots are not supported by this backend")

	// ErrServerError is returned by HTTPPort for 5xx responses.
	ErrServerError = errors.New("server error")
)
