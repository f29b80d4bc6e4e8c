// Package metrics counts what happened during a crawl session with
// Prometheus collectors. Each session owns its own registry; at the end of a
// run the counters can be written in the text exposition format for the
// node_exporter textfile collector.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nao1215/onioncrawl/internal/model"
)

// Collector holds the counters of one crawl session. A nil *Collector is
// valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	fetchAttempts *prometheus.CounterVec
	fetchFailures prometheus.Counter
	results       prometheus.Counter
	blacklisted   prometheus.Counter
	keywordHits   *prometheus.CounterVec
	screenshots   *prometheus.CounterVec
}

// New creates a Collector with a private registry.
func New() (*Collector, error) {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		fetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onioncrawl_fetch_attempts_total",
			Help: "Render attempts partitioned by outcome.",
		}, []string{"result"}),
		fetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onioncrawl_fetch_failures_total",
			Help: "Pages that could not be fetched after all retries.",
		}),
		results: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onioncrawl_results_total",
			Help: "Results appended to the result store.",
		}),
		blacklisted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "onioncrawl_blacklisted_pages_total",
			Help: "Results whose host matched the denylist.",
		}),
		keywordHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onioncrawl_keyword_hits_total",
			Help: "Pages containing each configured keyword.",
		}, []string{"keyword"}),
		screenshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "onioncrawl_screenshots_total",
			Help: "Screenshot captures partitioned by outcome.",
		}, []string{"result"}),
	}
	for _, collector := range []prometheus.Collector{
		c.fetchAttempts,
		c.fetchFailures,
		c.results,
		c.blacklisted,
		c.keywordHits,
		c.screenshots,
	} {
		if err := c.registry.Register(collector); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

// Registry returns the session registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// FetchAttempt records one render attempt.
func (c *Collector) FetchAttempt(ok bool) {
	if c == nil {
		return
	}
	c.fetchAttempts.WithLabelValues(outcome(ok)).Inc()
}

// FetchFailed records a page whose retries were exhausted.
func (c *Collector) FetchFailed() {
	if c == nil {
		return
	}
	c.fetchFailures.Inc()
}

// Screenshot records one screenshot capture.
func (c *Collector) Screenshot(ok bool) {
	if c == nil {
		return
	}
	c.screenshots.WithLabelValues(outcome(ok)).Inc()
}

// Result records an appended result.
func (c *Collector) Result(r *model.Result) {
	if c == nil || r == nil {
		return
	}
	c.results.Inc()
	if r.Blacklisted {
		c.blacklisted.Inc()
	}
	for _, kw := range r.KeywordsFound {
		c.keywordHits.WithLabelValues(kw).Inc()
	}
}

// WriteTextfile writes all counters to path in the Prometheus text format.
func (c *Collector) WriteTextfile(path string) error {
	if c == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
