package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/onioncrawl/internal/browser"
	"github.com/nao1215/onioncrawl/internal/config"
	"github.com/nao1215/onioncrawl/internal/crawler"
	"github.com/nao1215/onioncrawl/internal/denylist"
	"github.com/nao1215/onioncrawl/internal/fetch"
	"github.com/nao1215/onioncrawl/internal/log"
	"github.com/nao1215/onioncrawl/internal/metrics"
	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/onion"
	"github.com/nao1215/onioncrawl/internal/pipeline"
	"github.com/nao1215/onioncrawl/internal/store"
	"github.com/nao1215/onioncrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed-url>",
		Short: "Crawl a Tor hidden service starting from a seed URL",
		Long: `Crawl visits pages depth-first starting at the seed URL. Only links to other
v2 or v3 onion addresses are followed. Every page reached is rendered,
searched for keywords, checked against the denylist and screenshotted, and
one JSON record per page is appended to the results file.

The crawl stops when the depth limit or the page budget is reached, or on
Ctrl-C; results written so far are kept.

Examples:
  # Crawl two levels deep, at most 50 pages
  onioncrawl crawl http://exampleonionv3addressxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx.onion

  # Search for keywords and start from an empty results file
  onioncrawl crawl -k market -k leak --fresh http://example...onion

  # Use Tor Browser's proxy and the plain HTTP backend
  onioncrawl crawl --tor-proxy 127.0.0.1:9150 --backend http http://example...onion`,
		Args: cobra.MaximumNArgs(1),
		RunE: runCrawlCmd,
	}

	f := cmd.Flags()
	f.StringP("config", "c", "", "Configuration file path (default: .onioncrawl.yaml in current, XDG config or home directory)")

	// Crawl bounds
	f.IntP("depth", "d", config.DefaultMaxDepth, "Maximum link depth from the seed")
	f.IntP("limit", "l", config.DefaultCrawlLimit, "Maximum number of pages to fetch")
	f.StringSliceP("keyword", "k", nil, "Keyword to search for (repeatable)")
	f.Duration("delay-min", config.DefaultDelayMin, "Minimum pause between pages")
	f.Duration("delay-max", config.DefaultDelayMax, "Maximum pause between pages")
	f.Bool("strict-addresses", false, "Require a valid v3 checksum and base32 alphabet")

	// Tor
	f.StringP("tor-proxy", "x", config.DefaultTorProxyAddress, "Tor SOCKS5 proxy address")
	f.BoolP("embedded-tor", "E", false, "Start an embedded Tor daemon instead of using --tor-proxy")
	f.Duration("tor-timeout", config.DefaultTorStartupTimeout, "Timeout for embedded Tor startup")

	// Fetching
	f.StringP("backend", "b", config.BackendChromedp, "Page fetcher: chromedp or http")
	f.String("chrome-path", "", "Chrome executable (default: search PATH)")
	f.DurationP("timeout", "t", config.DefaultTimeout, "Timeout of a single render attempt")
	f.IntP("retries", "r", config.DefaultMaxRetries, "Render attempts per page")
	f.Duration("backoff", config.DefaultRetryBackoff, "Delay after the first failed attempt, doubled each retry")
	f.Duration("render-wait", config.DefaultRenderWait, "Time allowed for scripts to settle before reading the page")
	f.StringSlice("user-agent", nil, "User-Agent pool to pick from (repeatable)")

	// Outputs
	f.StringP("results", "o", "", "JSONL results file (default outputs/results.jsonl)")
	f.String("screenshots", "", "Screenshot directory (default outputs/screenshots)")
	f.String("denylist", config.DefaultDenylistPath, "Denylisted domains, one per line")
	f.String("log-file", config.DefaultLogFile, "Activity log file; empty disables it")
	f.String("db-dir", "", "Session index directory (default: XDG data directory)")
	f.Bool("no-index", false, "Do not record the crawl in the session index")
	f.String("metrics-file", "", "Write Prometheus counters to this file when the crawl ends")
	f.Bool("fresh", false, "Truncate the results file before crawling")
	f.Bool("json-log", false, "Write console logs as JSON")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	// Nothing touches the network before the configuration is known to be valid.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	jsonLog, err := cmd.Flags().GetBool("json-log")
	if err != nil {
		return err
	}
	logger, logCloser, err := log.NewLogger(log.Options{
		Writer:  cmd.ErrOrStderr(),
		Verbose: cfg.Verbose,
		JSON:    jsonLog,
		File:    cfg.LogFile,
	})
	if err != nil {
		return err
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runCrawl(ctx, cfg, defaultCrawlDeps(), logger, cmd.OutOrStdout())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig returns the defaults overlaid with the config file selected
// by the "config" flag or found in the usual places. An explicitly given
// file must exist.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	explicitPath := ""
	if cmd.Flags().Lookup("config") != nil {
		p, err := cmd.Flags().GetString("config")
		if err != nil {
			return nil, err
		}
		explicitPath = p
	}

	configPath := config.FindConfigFile(explicitPath)
	if configPath == "" {
		if explicitPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, explicitPath)
		}
		return cfg, nil
	}
	loaded, err := config.LoadConfigFile(configPath, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
	}
	return loaded, nil
}

// setIfChanged stores the flag value in dst when the user set the flag.
func setIfChanged[T any](cmd *cobra.Command, name string, get func(string) (T, error), dst *T) error {
	if !cmd.Flags().Changed(name) {
		return nil
	}
	v, err := get(name)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// buildConfig merges defaults, the config file and explicitly set flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	f := cmd.Flags()
	var noIndex bool
	err = errors.Join(
		setIfChanged(cmd, "depth", f.GetInt, &cfg.MaxDepth),
		setIfChanged(cmd, "limit", f.GetInt, &cfg.CrawlLimit),
		setIfChanged(cmd, "keyword", f.GetStringSlice, &cfg.Keywords),
		setIfChanged(cmd, "delay-min", f.GetDuration, &cfg.DelayMin),
		setIfChanged(cmd, "delay-max", f.GetDuration, &cfg.DelayMax),
		setIfChanged(cmd, "strict-addresses", f.GetBool, &cfg.StrictAddresses),
		setIfChanged(cmd, "tor-proxy", f.GetString, &cfg.TorProxyAddress),
		setIfChanged(cmd, "embedded-tor", f.GetBool, &cfg.EmbeddedTor),
		setIfChanged(cmd, "tor-timeout", f.GetDuration, &cfg.TorStartupTimeout),
		setIfChanged(cmd, "backend", f.GetString, &cfg.Backend),
		setIfChanged(cmd, "chrome-path", f.GetString, &cfg.ChromePath),
		setIfChanged(cmd, "timeout", f.GetDuration, &cfg.Timeout),
		setIfChanged(cmd, "retries", f.GetInt, &cfg.MaxRetries),
		setIfChanged(cmd, "backoff", f.GetDuration, &cfg.RetryBackoff),
		setIfChanged(cmd, "render-wait", f.GetDuration, &cfg.RenderWait),
		setIfChanged(cmd, "user-agent", f.GetStringSlice, &cfg.UserAgents),
		setIfChanged(cmd, "results", f.GetString, &cfg.ResultsFile),
		setIfChanged(cmd, "screenshots", f.GetString, &cfg.ScreenshotDir),
		setIfChanged(cmd, "denylist", f.GetString, &cfg.DenylistPath),
		setIfChanged(cmd, "log-file", f.GetString, &cfg.LogFile),
		setIfChanged(cmd, "db-dir", f.GetString, &cfg.DBDir),
		setIfChanged(cmd, "no-index", f.GetBool, &noIndex),
		setIfChanged(cmd, "metrics-file", f.GetString, &cfg.MetricsFile),
		setIfChanged(cmd, "fresh", f.GetBool, &cfg.Fresh),
	)
	if err != nil {
		return nil, err
	}
	if noIndex {
		cfg.DBDir = ""
	}

	cfg.Verbose = getVerboseFlag(cmd)
	if len(args) > 0 {
		cfg.Seed = args[0]
	}
	return cfg, nil
}

// crawlDeps holds the collaborators runCrawl creates on the network.
// Tests replace them with fakes.
type crawlDeps struct {
	// checkProxy verifies the SOCKS proxy before any page is requested.
	checkProxy func(ctx context.Context, client *tor.Client) tor.ProxyStatus
	// newPort creates the page fetcher for the session.
	newPort func(cfg *config.Config, client *tor.Client, userAgent string, logger *slog.Logger) (fetch.Port, error)
	// now stamps session start and end.
	now func() time.Time
}

func defaultCrawlDeps() crawlDeps {
	return crawlDeps{
		checkProxy: func(ctx context.Context, client *tor.Client) tor.ProxyStatus {
			return client.CheckConnection(ctx)
		},
		newPort: newPort,
		now:     time.Now,
	}
}

// newPort creates the Fetch Port selected by cfg.Backend.
func newPort(cfg *config.Config, client *tor.Client, userAgent string, logger *slog.Logger) (fetch.Port, error) {
	if cfg.Backend == config.BackendHTTP {
		return fetch.NewHTTPPort(client.NewHTTPClient(),
			fetch.WithUserAgent(userAgent),
			fetch.WithMaxBodySize(cfg.MaxBodySize),
		), nil
	}
	return browser.New(browser.Config{
		ProxyURL:   client.ProxyURL(),
		UserAgent:  userAgent,
		RenderWait: cfg.RenderWait,
		ExecPath:   cfg.ChromePath,
	}, browser.WithLogger(logger))
}

// runCrawl performs one crawl session. Cancellation of ctx ends the crawl
// early without an error; only failures to set up the session are returned.
func runCrawl(ctx context.Context, cfg *config.Config, deps crawlDeps, logger *slog.Logger, out io.Writer) error {
	proxyAddr := cfg.TorProxyAddress
	if cfg.EmbeddedTor {
		embedded, err := startEmbeddedTor(ctx, cfg, logger, out)
		if err != nil {
			return err
		}
		defer func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}()
		proxyAddr = embedded.SocksAddr()
	}

	client, err := tor.NewClient(proxyAddr, cfg.Timeout)
	if err != nil {
		return fmt.Errorf("%w: %w", fetch.ErrBackendInit, err)
	}
	if status := deps.checkProxy(ctx, client); status != tor.ProxyStatusOK {
		return fmt.Errorf("%w: tor proxy check failed at %s: %w", fetch.ErrBackendInit, proxyAddr, status.Error())
	}
	logger.Info("Tor proxy connection verified", "address", proxyAddr)

	userAgent := cfg.PickUserAgent()
	port, err := deps.newPort(cfg, client, userAgent, logger)
	if err != nil {
		logger.Error("fetch backend failed to start", "backend", cfg.Backend, "error", err)
		return err
	}
	defer func() {
		if err := port.Close(); err != nil {
			logger.Error("failed to close fetch backend", "error", err)
		}
	}()

	collector, err := metrics.New()
	if err != nil {
		return err
	}

	results, err := store.OpenJSONL(cfg.ResultsFile, cfg.Fresh)
	if err != nil {
		return err
	}
	defer results.Close()

	session := crawler.NewSession(cfg.CrawlLimit)
	sink := store.Appender(results)

	var index *store.Index
	if cfg.DBDir != "" {
		index, err = store.OpenIndex(cfg.DBDir, store.DefaultIndexOptions())
		if err != nil {
			// The JSONL file is the record of the crawl; the index is optional.
			logger.Error("session index unavailable", "dir", cfg.DBDir, "error", err)
		} else {
			defer index.Close()
			if err := index.StartSession(ctx, session.ID(), onion.Normalize(cfg.Seed), deps.now()); err != nil {
				return err
			}
			sink = store.Tee(results, store.BestEffort(index.ForSession(session.ID()), logger))
		}
	}

	retrier := fetch.NewRetrier(port,
		fetch.WithMaxRetries(cfg.MaxRetries),
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithBackoff(cfg.RetryBackoff),
		fetch.WithObserver(collector),
		fetch.WithLogger(logger),
	)

	pipe := pipeline.New(sink,
		pipeline.WithLogger(logger),
		pipeline.WithObserver(collector),
	)
	pipe.AddSteps(
		pipeline.NewKeywordStep(cfg.Keywords),
		pipeline.NewMetadataStep(),
		pipeline.NewDenylistStep(denylist.NewFileChecker(cfg.DenylistPath)),
		pipeline.NewScreenshotStep(retrier, cfg.ScreenshotDir),
	)
	logger.Debug("page pipeline ready", "steps", pipe.StepNames())

	engine := crawler.NewEngine(retrier, pipe,
		crawler.WithMaxDepth(cfg.MaxDepth),
		crawler.WithPauser(crawler.NewRandomDelay(cfg.DelayMin, cfg.DelayMax)),
		crawler.WithScope(cfg.InScope()),
		crawler.WithLogger(logger),
	)

	logger.Info("starting crawl",
		"session", session.ID(),
		"seed", cfg.Seed,
		"max_depth", cfg.MaxDepth,
		"crawl_limit", cfg.CrawlLimit,
		"backend", cfg.Backend,
		"user_agent", userAgent,
	)
	fmt.Fprintf(out, "Crawling %s (session %s)...\n", cfg.Seed, session.ID())
	startTime := deps.now()

	// The traversal and the shutdown watcher run as one group; whichever
	// finishes first releases the other.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()
	g, gctx := errgroup.WithContext(runCtx)

	var stats crawler.Stats
	g.Go(func() error {
		defer cancelRun()
		stats, _ = engine.Run(gctx, session, cfg.Seed) //nolint:errcheck // cancellation is reported below
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Warn("received shutdown signal, stopping crawl", "session", session.ID())
		}
		return nil
	})
	_ = g.Wait() //nolint:errcheck // both goroutines return nil

	status := model.SessionCompleted
	if ctx.Err() != nil {
		status = model.SessionCancelled
	}
	finishedAt := deps.now()

	if index != nil {
		// The session row is closed even when ctx was cancelled.
		if err := index.FinishSession(context.WithoutCancel(ctx), session.ID(), status, stats.Dispatched, finishedAt); err != nil {
			logger.Error("failed to finish session in index", "session", session.ID(), "error", err)
		}
	}
	if cfg.MetricsFile != "" {
		if err := collector.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	logger.Info("crawl finished",
		"session", session.ID(),
		"status", status,
		"dispatched", stats.Dispatched,
		"results", stats.Results,
		"fetch_failures", stats.FetchFailures,
		"elapsed", finishedAt.Sub(startTime),
	)
	fmt.Fprintf(out, "Crawl %s: %d page(s) fetched, %d result(s), %d failed, in %s\n",
		status, stats.Dispatched, stats.Results, stats.FetchFailures,
		finishedAt.Sub(startTime).Round(time.Millisecond))
	fmt.Fprintf(out, "Results: %s\n", cfg.ResultsFile)
	return nil
}

// startEmbeddedTor starts the tornago daemon and waits for it to bootstrap.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, out io.Writer) (*tor.EmbeddedTor, error) {
	fmt.Fprintln(out, "Starting embedded Tor daemon...")
	fmt.Fprintln(out, "This may take 1-3 minutes while Tor bootstraps and connects to the network.")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, fmt.Errorf("%w: failed to start embedded Tor: %w", fetch.ErrBackendInit, err)
	}
	logger.Info("embedded Tor daemon started", "socks_addr", embedded.SocksAddr())
	return embedded, nil
}
