// Package browser implements fetch.Port with headless Chrome driven over the
// DevTools protocol.
//
// One browser process is started per crawl session and every request opens
// a fresh tab in it. All traffic, including DNS resolution, goes through the
// configured SOCKS5 proxy; local name resolution is disabled so onion names
// never reach the system resolver.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/nao1215/onioncrawl/internal/fetch"
)

// Defaults for Config fields left at their zero value.
const (
	DefaultRenderWait   = 5 * time.Second
	DefaultWindowWidth  = 1366
	DefaultWindowHeight = 768
)

// Config describes how the browser is launched.
type Config struct {
	// ProxyURL is the proxy every request is routed through, for example
	// "socks5://127.0.0.1:9050". Empty means a direct connection.
	ProxyURL string

	// UserAgent overrides the browser's User-Agent for the whole session.
	UserAgent string

	// RenderWait is how long to let scripts run after the document is ready.
	RenderWait time.Duration

	// WindowWidth and WindowHeight size the viewport used for screenshots.
	WindowWidth  int
	WindowHeight int

	// ExecPath selects the Chrome binary. Empty lets chromedp search for one.
	ExecPath string
}

// Browser is a running headless Chrome instance.
type Browser struct {
	cfg    Config
	logger *slog.Logger

	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

var _ fetch.Port = (*Browser)(nil)

// Option configures a Browser.
type Option func(*Browser)

// WithLogger sets the logger for browser lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Browser) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New launches Chrome and waits until it accepts commands. Failures wrap
// fetch.ErrBackendInit. The returned Browser must be closed.
func New(cfg Config, opts ...Option) (*Browser, error) {
	if cfg.RenderWait < 0 {
		cfg.RenderWait = 0
	}
	if cfg.WindowWidth <= 0 || cfg.WindowHeight <= 0 {
		cfg.WindowWidth, cfg.WindowHeight = DefaultWindowWidth, DefaultWindowHeight
	}

	b := &Browser{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	allocOpts, err := allocatorOptions(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fetch.ErrBackendInit, err)
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	b.allocCancel, b.browserCtx, b.browserCancel = allocCancel, browserCtx, browserCancel

	// The first Run on the browser context starts the process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("%w: %w", fetch.ErrBackendInit, err)
	}

	b.logger.Debug("browser started", "proxy", cfg.ProxyURL, "render_wait", cfg.RenderWait)
	return b, nil
}

// allocatorOptions builds the Chrome command line for cfg.
func allocatorOptions(cfg Config) ([]chromedp.ExecAllocatorOption, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	if cfg.ProxyURL != "" {
		proxyHost, err := proxyHostname(cfg.ProxyURL)
		if err != nil {
			return nil, err
		}
		opts = append(opts,
			chromedp.ProxyServer(cfg.ProxyURL),
			chromedp.Flag("host-resolver-rules", "MAP * ~NOTFOUND , EXCLUDE "+proxyHost),
		)
	}
	return opts, nil
}

// proxyHostname extracts the host of a proxy URL such as socks5://127.0.0.1:9050.
func proxyHostname(proxyURL string) (string, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return "", fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
	}
	host, _, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" {
		return "", fmt.Errorf("invalid proxy URL %q: expected scheme://host:port", proxyURL)
	}
	return host, nil
}

// Render implements fetch.Port.
func (b *Browser) Render(ctx context.Context, pageURL string) (string, error) {
	tabCtx, cancel := b.newTab(ctx)
	defer cancel()

	var html string
	err := chromedp.Run(tabCtx,
		b.setup(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.RenderWait),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// Screenshot implements fetch.Port. The image is written as PNG to path;
// missing parent directories are created.
func (b *Browser) Screenshot(ctx context.Context, pageURL, path string) error {
	tabCtx, cancel := b.newTab(ctx)
	defer cancel()

	var png []byte
	err := chromedp.Run(tabCtx,
		b.setup(),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(b.cfg.RenderWait),
		// quality 100 selects PNG encoding
		chromedp.FullScreenshot(&png, 100),
	)
	if err != nil {
		return fmt.Errorf("screenshot %s: %w", pageURL, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("failed to create screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, png, 0o600); err != nil {
		return fmt.Errorf("failed to write screenshot: %w", err)
	}
	return nil
}

// Close implements fetch.Port. It shuts the browser down and is safe to call
// more than once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		err := chromedp.Cancel(b.browserCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			b.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		b.browserCancel()
		b.allocCancel()
		b.logger.Debug("browser closed")
	})
	return b.closeErr
}

// newTab opens a tab that is closed when ctx ends or the returned cancel
// function is called, whichever comes first.
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc) {
	tabCtx, cancelTab := chromedp.NewContext(b.browserCtx)
	stop := context.AfterFunc(ctx, cancelTab)

	cancelDeadline := func() {}
	if deadline, ok := ctx.Deadline(); ok {
		tabCtx, cancelDeadline = context.WithDeadline(tabCtx, deadline)
	}

	return tabCtx, func() {
		stop()
		cancelDeadline()
		cancelTab()
	}
}

// setup enables the network domain and applies the session User-Agent.
func (b *Browser) setup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if b.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(b.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}
