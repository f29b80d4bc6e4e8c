package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/nao1215/onioncrawl/internal/model"
)

func TestCollector(t *testing.T) {
	t.Parallel()

	c, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	c.FetchAttempt(false)
	c.FetchAttempt(true)
	c.FetchFailed()
	c.Screenshot(false)

	r := model.NewResult("http://x.onion", time.Now())
	r.Blacklisted = true
	r.KeywordsFound = []string{"market", "escrow"}
	c.Result(r)
	c.Result(model.NewResult("http://y.onion", time.Now()))

	if got := testutil.ToFloat64(c.fetchAttempts.WithLabelValues("failure")); got != 1 {
		t.Errorf("expected 1 failed attempt, got %v", got)
	}
	if got := testutil.ToFloat64(c.fetchFailures); got != 1 {
		t.Errorf("expected 1 fetch failure, got %v", got)
	}
	if got := testutil.ToFloat64(c.results); got != 2 {
		t.Errorf("expected 2 results, got %v", got)
	}
	if got := testutil.ToFloat64(c.blacklisted); got != 1 {
		t.Errorf("expected 1 blacklisted page, got %v", got)
	}
	if got := testutil.ToFloat64(c.keywordHits.WithLabelValues("escrow")); got != 1 {
		t.Errorf("expected 1 escrow hit, got %v", got)
	}

	path := filepath.Join(t.TempDir(), "onioncrawl.prom")
	if err := c.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile failed: %v", err)
	}
	data, err := os.ReadFile(path) //nolint:gosec // test file
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "onioncrawl_results_total 2") {
		t.Errorf("unexpected textfile contents:\n%s", data)
	}
}

func TestCollector_Nil(t *testing.T) {
	t.Parallel()

	var c *Collector
	c.FetchAttempt(true)
	c.FetchFailed()
	c.Screenshot(true)
	c.Result(model.NewResult("http://x.onion", time.Now()))
	if err := c.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")); err != nil {
		t.Errorf("nil collector must be a no-op, got %v", err)
	}
	if c.Registry() != nil {
		t.Error("expected nil registry")
	}
}
