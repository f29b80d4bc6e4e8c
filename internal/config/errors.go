package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide an onion URL to start from")

	// ErrInvalidSeed is returned when the seed is not an in-scope onion URL.
	ErrInvalidSeed = errors.New("invalid seed: expected an http(s) URL of a v2 or v3 onion service")

	// ErrInvalidMaxDepth is returned when the depth limit is negative.
	ErrInvalidMaxDepth = errors.New("invalid max depth: must be non-negative")

	// ErrInvalidCrawlLimit is returned when the crawl limit is less than one.
	ErrInvalidCrawlLimit = errors.New("invalid crawl limit: must be at least 1")

	// ErrInvalidMaxRetries is returned when fewer than one attempt is allowed.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be at least 1")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	// A timeout of zero or negative would cause immediate connection failures.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidRenderWait is returned when the render wait is negative.
	ErrInvalidRenderWait = errors.New("invalid render wait: must be non-negative")

	// ErrInvalidDelay is returned when the politeness delay range is negative
	// or its minimum exceeds its maximum.
	ErrInvalidDelay = errors.New("invalid delay range: need 0 <= min <= max")

	// ErrNoUserAgents is returned when the user agent pool is empty.
	ErrNoUserAgents = errors.New("no user agents configured")

	// ErrInvalidProxyAddress is returned when the proxy is not host:port.
	ErrInvalidProxyAddress = errors.New("invalid tor proxy address: expected host:port")

	// ErrUnknownBackend is returned for an unsupported fetch backend name.
	ErrUnknownBackend = errors.New("unknown backend: must be chromedp or http")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	// A negative body size is invalid; use 0 to use the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")
)
