package config

import (
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/onioncrawl/internal/onion"
	"github.com/nao1215/onioncrawl/internal/tor"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "onioncrawl"

	// DefaultMaxDepth is the deepest link level followed from the seed.
	DefaultMaxDepth = 2

	// DefaultCrawlLimit caps the number of pages fetched per session.
	DefaultCrawlLimit = 50

	// DefaultTorProxyAddress is the standard Tor SOCKS5 proxy address.
	// We use 127.0.0.1 instead of localhost to avoid DNS resolution overhead
	// and potential issues with IPv6 resolution on some systems.
	DefaultTorProxyAddress = "127.0.0.1:9050"

	// DefaultTimeout bounds a single render attempt.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the number of render attempts per page.
	DefaultMaxRetries = 3

	// DefaultRetryBackoff is the first retry delay; it doubles per attempt.
	DefaultRetryBackoff = time.Second

	// DefaultRenderWait lets client-side scripts settle before the DOM is read.
	DefaultRenderWait = 5 * time.Second

	// DefaultDelayMin and DefaultDelayMax bound the politeness pause
	// between pages.
	DefaultDelayMin = 3 * time.Second
	DefaultDelayMax = 5 * time.Second

	// DefaultOutputDir holds the result log and screenshots.
	DefaultOutputDir = "outputs"

	// DefaultDenylistPath is the threat feed consulted for every page.
	DefaultDenylistPath = "tools/feeds.txt"

	// DefaultLogFile receives the activity log.
	DefaultLogFile = "data/logs/activity.log"

	// DefaultMaxBodySize limits the response body read by the http backend.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultTorStartupTimeout is the maximum time to wait for the embedded
	// Tor daemon to bootstrap.
	DefaultTorStartupTimeout = tor.DefaultStartupTimeout
)

// Fetch backends.
const (
	// BackendChromedp renders pages in headless Chrome.
	BackendChromedp = "chromedp"
	// BackendHTTP downloads raw HTML with the Tor HTTP client. It cannot
	// take screenshots.
	BackendHTTP = "http"
)

// DefaultUserAgents is the pool a session picks its User-Agent from.
// They mimic Tor Browser, which is based on Firefox ESR.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:128.0) Gecko/20100101 Firefox/128.0",
}

// Config holds all configuration options for a crawl.
// It is populated from defaults, the config file and CLI flags, in that
// order, and passed through the application rather than kept globally.
type Config struct {
	// Seed is the URL the crawl starts from. It only comes from the command line.
	Seed string `yaml:"-"`

	// MaxDepth is the maximum link depth. Depth 0 fetches only the seed.
	MaxDepth int `yaml:"max_depth"`

	// CrawlLimit is the maximum number of pages fetched in one session.
	CrawlLimit int `yaml:"crawl_limit"`

	// Keywords are matched as whole words, case-insensitively, in every page.
	Keywords []string `yaml:"keywords"`

	// UserAgents is the pool from which one User-Agent is chosen per session.
	UserAgents []string `yaml:"user_agents"`

	// TorProxyAddress is the address of the Tor SOCKS5 proxy in "host:port" format.
	TorProxyAddress string `yaml:"tor_proxy"`

	// Timeout bounds each render attempt and each screenshot.
	Timeout time.Duration `yaml:"timeout"`

	// MaxRetries is the number of render attempts per page.
	MaxRetries int `yaml:"max_retries"`

	// RetryBackoff is the delay after the first failed attempt. Later
	// delays double.
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	// RenderWait is how long the browser waits after load before reading
	// the DOM.
	RenderWait time.Duration `yaml:"render_wait"`

	// DelayMin and DelayMax bound the random pause after each page.
	DelayMin time.Duration `yaml:"delay_min"`
	DelayMax time.Duration `yaml:"delay_max"`

	// ResultsFile is the JSONL result log.
	ResultsFile string `yaml:"results_file"`

	// ScreenshotDir receives one PNG per page.
	ScreenshotDir string `yaml:"screenshot_dir"`

	// DenylistPath is a file of denied domains, one per line.
	DenylistPath string `yaml:"denylist"`

	// LogFile receives a copy of the log. Empty disables it.
	LogFile string `yaml:"log_file"`

	// DBDir is the directory of the SQLite session index. Empty disables it.
	DBDir string `yaml:"db_dir"`

	// MetricsFile receives the session counters in Prometheus text format.
	// Empty disables it.
	MetricsFile string `yaml:"metrics_file"`

	// Backend selects the page fetcher: BackendChromedp or BackendHTTP.
	Backend string `yaml:"backend"`

	// ChromePath overrides the Chrome executable used by BackendChromedp.
	ChromePath string `yaml:"chrome_path"`

	// MaxBodySize caps the response body read by BackendHTTP.
	MaxBodySize int64 `yaml:"max_body_size"`

	// Fresh truncates the result log before crawling.
	Fresh bool `yaml:"fresh"`

	// StrictAddresses additionally verifies the base32 alphabet and v3
	// checksum of onion addresses.
	StrictAddresses bool `yaml:"strict_addresses"`

	// EmbeddedTor starts a private Tor daemon instead of using TorProxyAddress.
	EmbeddedTor bool `yaml:"embedded_tor"`

	// TorStartupTimeout is the maximum time to wait for the embedded Tor
	// daemon to bootstrap.
	TorStartupTimeout time.Duration `yaml:"tor_startup_timeout"`

	// Verbose enables detailed log output using slog.LevelDebug.
	Verbose bool `yaml:"-"`

	// ConfigFilePath is the file the settings were loaded from, if any.
	ConfigFilePath string `yaml:"-"`
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		MaxDepth:          DefaultMaxDepth,
		CrawlLimit:        DefaultCrawlLimit,
		Keywords:          []string{},
		UserAgents:        append([]string(nil), DefaultUserAgents...),
		TorProxyAddress:   DefaultTorProxyAddress,
		Timeout:           DefaultTimeout,
		MaxRetries:        DefaultMaxRetries,
		RetryBackoff:      DefaultRetryBackoff,
		RenderWait:        DefaultRenderWait,
		DelayMin:          DefaultDelayMin,
		DelayMax:          DefaultDelayMax,
		ResultsFile:       filepath.Join(DefaultOutputDir, "results.jsonl"),
		ScreenshotDir:     filepath.Join(DefaultOutputDir, "screenshots"),
		DenylistPath:      DefaultDenylistPath,
		LogFile:           DefaultLogFile,
		DBDir:             XDGDataDir(),
		Backend:           BackendChromedp,
		MaxBodySize:       DefaultMaxBodySize,
		TorStartupTimeout: DefaultTorStartupTimeout,
	}
}

// XDGDataDir returns the XDG data directory for onioncrawl.
// On Linux: ~/.local/share/onioncrawl
// On macOS: ~/Library/Application Support/onioncrawl
// On Windows: %LOCALAPPDATA%\onioncrawl
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for onioncrawl.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// InScope returns the address check selected by StrictAddresses.
func (c *Config) InScope() func(string) bool {
	if c.StrictAddresses {
		return onion.IsInScopeStrict
	}
	return onion.IsInScope
}

// ValidateSeed checks only the seed. It is run before anything touches the
// network.
func (c *Config) ValidateSeed() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if !c.InScope()(c.Seed) {
		return fmt.Errorf("%w: %q", ErrInvalidSeed, c.Seed)
	}
	return nil
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if err := c.ValidateSeed(); err != nil {
		return err
	}
	if c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.CrawlLimit < 1 {
		return ErrInvalidCrawlLimit
	}
	if c.MaxRetries < 1 {
		return ErrInvalidMaxRetries
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.RenderWait < 0 {
		return ErrInvalidRenderWait
	}
	if c.DelayMin < 0 || c.DelayMin > c.DelayMax {
		return ErrInvalidDelay
	}
	if len(c.UserAgents) == 0 {
		return ErrNoUserAgents
	}
	if !c.EmbeddedTor && !tor.IsValidProxyAddress(c.TorProxyAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidProxyAddress, c.TorProxyAddress)
	}
	switch c.Backend {
	case BackendChromedp, BackendHTTP:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// PickUserAgent returns a random entry of UserAgents.
func (c *Config) PickUserAgent() string {
	if len(c.UserAgents) == 0 {
		return DefaultUserAgents[0]
	}
	return c.UserAgents[rand.IntN(len(c.UserAgents))]
}
