package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/onioncrawl/internal/config"
	"github.com/nao1215/onioncrawl/internal/fetch"
	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/store"
	"github.com/nao1215/onioncrawl/internal/tor"
)

const (
	seedHost   = "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaam2dqd.onion"
	deniedHost = "facebookcorewwwi.onion"
)

// fakePort serves canned pages instead of rendering them.
type fakePort struct {
	mu       sync.Mutex
	pages    map[string]string
	onRender func(pageURL string)
	rendered []string
	shots    []string
	closed   int
}

func (p *fakePort) Render(_ context.Context, pageURL string) (string, error) {
	p.mu.Lock()
	p.rendered = append(p.rendered, pageURL)
	body, ok := p.pages[pageURL]
	hook := p.onRender
	p.mu.Unlock()

	if hook != nil {
		hook(pageURL)
	}
	if !ok {
		return "", fmt.Errorf("no route to %s", pageURL)
	}
	return body, nil
}

func (p *fakePort) Screenshot(_ context.Context, _, path string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shots = append(p.shots, path)
	return nil
}

func (p *fakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed++
	return nil
}

func testSite() map[string]string {
	seed := "http://" + seedHost
	return map[string]string{
		seed: `<html><head><title>Hidden Index</title>
<meta name="description" content="directory"></head>
<body><p>monero accepted</p>
<a href="/about">about</a>
<a href="http://` + deniedHost + `/">mirror</a>
<a href="https://example.com/">clearnet</a>
</body></html>`,
		seed + "/about":        `<html><head><title>About</title></head><body>nothing here</body></html>`,
		"http://" + deniedHost: `<html><head><title>Mirror</title></head><body>monero</body></html>`,
	}
}

// testCrawlConfig returns a valid configuration writing into a temp dir.
func testCrawlConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()
	denylistPath := filepath.Join(dir, "denylist.txt")
	if err := os.WriteFile(denylistPath, []byte("# known bad\n"+deniedHost+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := config.NewConfig()
	cfg.Seed = "http://" + seedHost + "/"
	cfg.Keywords = []string{"monero"}
	cfg.MaxRetries = 1
	cfg.RetryBackoff = 0
	cfg.DelayMin = 0
	cfg.DelayMax = 0
	cfg.ResultsFile = filepath.Join(dir, "results.jsonl")
	cfg.ScreenshotDir = filepath.Join(dir, "screenshots")
	cfg.DenylistPath = denylistPath
	cfg.DBDir = filepath.Join(dir, "index")
	cfg.MetricsFile = filepath.Join(dir, "metrics.prom")
	cfg.LogFile = ""
	return cfg
}

func testDeps(port *fakePort, status tor.ProxyStatus) (crawlDeps, *int) {
	created := 0
	return crawlDeps{
		checkProxy: func(context.Context, *tor.Client) tor.ProxyStatus { return status },
		newPort: func(*config.Config, *tor.Client, string, *slog.Logger) (fetch.Port, error) {
			created++
			return port, nil
		},
		now: time.Now,
	}, &created
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunCrawl(t *testing.T) {
	t.Parallel()

	t.Run("crawls the site and records results", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		port := &fakePort{pages: testSite()}
		deps, _ := testDeps(port, tor.ProxyStatusOK)

		var out bytes.Buffer
		if err := runCrawl(context.Background(), cfg, deps, discardLogger(), &out); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		results, err := store.ReadJSONL(cfg.ResultsFile)
		if err != nil {
			t.Fatal(err)
		}
		var urls []string
		for _, r := range results {
			urls = append(urls, r.URL)
		}
		seed := "http://" + seedHost
		want := []string{seed, seed + "/about", "http://" + deniedHost}
		if !slices.Equal(urls, want) {
			t.Fatalf("result URLs = %v, want %v", urls, want)
		}

		if !slices.Equal(results[0].KeywordsFound, []string{"monero"}) {
			t.Errorf("expected keyword hit on the seed, got %v", results[0].KeywordsFound)
		}
		if results[0].Metadata.Title != "Hidden Index" || results[0].Metadata.Meta["description"] != "directory" {
			t.Errorf("unexpected metadata: %+v", results[0].Metadata)
		}
		if results[0].Blacklisted || !results[2].Blacklisted {
			t.Errorf("expected only the mirror to be blacklisted: %v %v", results[0].Blacklisted, results[2].Blacklisted)
		}
		for _, r := range results {
			if r.ScreenshotPath == "" {
				t.Errorf("expected screenshot path for %s", r.URL)
			}
		}

		if port.closed != 1 {
			t.Errorf("expected the port to be closed once, got %d", port.closed)
		}
		if !strings.Contains(out.String(), "3 page(s) fetched") {
			t.Errorf("unexpected summary: %q", out.String())
		}

		metrics, err := os.ReadFile(cfg.MetricsFile)
		if err != nil {
			t.Fatalf("expected metrics file: %v", err)
		}
		if !strings.Contains(string(metrics), "onioncrawl_results_total 3") {
			t.Errorf("unexpected metrics:\n%s", metrics)
		}

		index, err := store.OpenIndex(cfg.DBDir, store.IndexOptions{})
		if err != nil {
			t.Fatal(err)
		}
		defer index.Close()
		session, err := index.LatestSession(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if session.Status != model.SessionCompleted || session.Dispatched != 3 || session.Results != 3 {
			t.Errorf("unexpected session: %+v", session)
		}
		if session.Seed != seed {
			t.Errorf("expected normalized seed %q, got %q", seed, session.Seed)
		}
	})

	t.Run("results accumulate across runs unless fresh", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		cfg.MaxDepth = 0
		cfg.DBDir = ""

		for range 2 {
			deps, _ := testDeps(&fakePort{pages: testSite()}, tor.ProxyStatusOK)
			if err := runCrawl(context.Background(), cfg, deps, discardLogger(), io.Discard); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		results, err := store.ReadJSONL(cfg.ResultsFile)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 appended results, got %d", len(results))
		}

		cfg.Fresh = true
		deps, _ := testDeps(&fakePort{pages: testSite()}, tor.ProxyStatusOK)
		if err := runCrawl(context.Background(), cfg, deps, discardLogger(), io.Discard); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		results, err = store.ReadJSONL(cfg.ResultsFile)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 1 {
			t.Errorf("expected fresh run to truncate, got %d results", len(results))
		}
	})

	t.Run("unreachable seed ends with no results", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		port := &fakePort{pages: map[string]string{}}
		deps, _ := testDeps(port, tor.ProxyStatusOK)

		if err := runCrawl(context.Background(), cfg, deps, discardLogger(), io.Discard); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		results, err := store.ReadJSONL(cfg.ResultsFile)
		if err != nil {
			t.Fatal(err)
		}
		if len(results) != 0 {
			t.Errorf("expected no results, got %d", len(results))
		}
		if len(port.rendered) != 1 {
			t.Errorf("expected one render attempt, got %v", port.rendered)
		}
	})

	t.Run("proxy failure aborts before the backend starts", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		deps, created := testDeps(&fakePort{}, tor.ProxyStatusCannotConnect)

		err := runCrawl(context.Background(), cfg, deps, discardLogger(), io.Discard)
		if !errors.Is(err, fetch.ErrBackendInit) || !errors.Is(err, tor.ErrProxyCannotConnect) {
			t.Fatalf("expected backend init error, got %v", err)
		}
		if *created != 0 {
			t.Error("port must not be created when the proxy check fails")
		}
		if _, err := os.Stat(cfg.ResultsFile); !os.IsNotExist(err) {
			t.Error("results file must not be created")
		}
	})

	t.Run("backend failure is returned", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		deps, _ := testDeps(nil, tor.ProxyStatusOK)
		deps.newPort = func(*config.Config, *tor.Client, string, *slog.Logger) (fetch.Port, error) {
			return nil, fmt.Errorf("%w: chrome not found", fetch.ErrBackendInit)
		}

		err := runCrawl(context.Background(), cfg, deps, discardLogger(), io.Discard)
		if !errors.Is(err, fetch.ErrBackendInit) {
			t.Fatalf("expected backend init error, got %v", err)
		}
	})

	t.Run("cancellation stops the crawl and marks the session", func(t *testing.T) {
		t.Parallel()

		cfg := testCrawlConfig(t)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		port := &fakePort{pages: testSite(), onRender: func(string) { cancel() }}
		deps, _ := testDeps(port, tor.ProxyStatusOK)

		if err := runCrawl(ctx, cfg, deps, discardLogger(), io.Discard); err != nil {
			t.Fatalf("cancellation must not be an error, got %v", err)
		}
		if len(port.rendered) != 1 {
			t.Errorf("expected the crawl to stop after the first page, rendered %v", port.rendered)
		}
		if port.closed != 1 {
			t.Errorf("expected the port to be closed, got %d", port.closed)
		}

		index, err := store.OpenIndex(cfg.DBDir, store.IndexOptions{})
		if err != nil {
			t.Fatal(err)
		}
		defer index.Close()
		session, err := index.LatestSession(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if session.Status != model.SessionCancelled {
			t.Errorf("expected cancelled session, got %q", session.Status)
		}
	})
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("flags override config file", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "crawl.yaml")
		yaml := "max_depth: 5\ncrawl_limit: 7\nkeywords: [leak]\nbackend: http\n"
		if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", path, "--limit", "9", "-k", "market", "--no-index"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, []string{"http://" + seedHost})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if cfg.MaxDepth != 5 {
			t.Errorf("expected depth from file, got %d", cfg.MaxDepth)
		}
		if cfg.CrawlLimit != 9 {
			t.Errorf("expected limit from flag, got %d", cfg.CrawlLimit)
		}
		if !slices.Equal(cfg.Keywords, []string{"market"}) {
			t.Errorf("expected keywords from flag, got %v", cfg.Keywords)
		}
		if cfg.Backend != config.BackendHTTP {
			t.Errorf("expected backend from file, got %q", cfg.Backend)
		}
		if cfg.DBDir != "" {
			t.Errorf("expected --no-index to disable the index, got %q", cfg.DBDir)
		}
		if cfg.Seed != "http://"+seedHost {
			t.Errorf("unexpected seed %q", cfg.Seed)
		}
		if cfg.ConfigFilePath != path {
			t.Errorf("expected config path %q, got %q", path, cfg.ConfigFilePath)
		}
	})

	t.Run("unset flags keep defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", writeEmptyConfig(t)}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.MaxDepth != config.DefaultMaxDepth || cfg.CrawlLimit != config.DefaultCrawlLimit {
			t.Errorf("expected defaults, got depth=%d limit=%d", cfg.MaxDepth, cfg.CrawlLimit)
		}
		if cfg.Seed != "" {
			t.Errorf("expected no seed, got %q", cfg.Seed)
		}
	})

	t.Run("missing explicit config file is an error", func(t *testing.T) {
		t.Parallel()

		cmd := NewCrawlCmd()
		if err := cmd.ParseFlags([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		if _, err := buildConfig(cmd, nil); !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("expected ErrConfigNotFound, got %v", err)
		}
	})
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("# defaults\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCrawlCmd_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want error
	}{
		{name: "missing seed", args: nil, want: config.ErrNoSeed},
		{name: "clearnet seed", args: []string{"https://example.com"}, want: config.ErrInvalidSeed},
		{name: "non-web scheme", args: []string{"ftp://" + seedHost}, want: config.ErrInvalidSeed},
		{name: "bad label length", args: []string{"http://short.onion"}, want: config.ErrInvalidSeed},
		{name: "negative depth", args: []string{"--depth=-1", "http://" + seedHost}, want: config.ErrInvalidMaxDepth},
		{name: "zero limit", args: []string{"-l", "0", "http://" + seedHost}, want: config.ErrInvalidCrawlLimit},
		{name: "unknown backend", args: []string{"-b", "curl", "http://" + seedHost}, want: config.ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cmd := NewCrawlCmd()
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			cmd.SetArgs(append([]string{"--config", writeEmptyConfig(t)}, tt.args...))

			err := cmd.Execute()
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
