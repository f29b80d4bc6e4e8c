package crawler

import (
	"context"
	"log/slog"

	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/onion"
)

// DefaultMaxDepth is the depth limit used when WithMaxDepth is not given.
const DefaultMaxDepth = 2

// Fetcher returns the rendered HTML of a page. Implementations retry on
// their own and report a final failure as an error.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// PagePipeline turns a fetched page into a stored Result.
type PagePipeline interface {
	Process(ctx context.Context, pageURL, html string) (*model.Result, error)
}

// Stats summarizes a finished crawl.
type Stats struct {
	// Dispatched is the number of URLs charged to the fetch budget.
	Dispatched int
	// Results is the number of pages that went through the pipeline.
	Results int
	// FetchFailures is the number of URLs whose fetch failed after all retries.
	FetchFailures int
	// PipelineFailures is the number of pages whose result could not be stored.
	PipelineFailures int
}

// Engine performs a depth-first traversal from a seed URL.
type Engine struct {
	fetcher  Fetcher
	pipeline PagePipeline
	maxDepth int
	pauser   Pauser
	inScope  ScopeFunc
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMaxDepth sets the deepest level that is fetched. The seed is depth 0.
func WithMaxDepth(depth int) EngineOption {
	return func(e *Engine) {
		e.maxDepth = depth
	}
}

// WithPauser sets the politeness delay applied after every fetched page.
func WithPauser(p Pauser) EngineOption {
	return func(e *Engine) {
		if p != nil {
			e.pauser = p
		}
	}
}

// WithScope replaces the default onion scope check for discovered links.
func WithScope(inScope ScopeFunc) EngineOption {
	return func(e *Engine) {
		if inScope != nil {
			e.inScope = inScope
		}
	}
}

// WithLogger sets the logger for traversal events.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an Engine that fetches pages with fetcher and hands
// them to pipeline.
func NewEngine(fetcher Fetcher, pipeline PagePipeline, opts ...EngineOption) *Engine {
	e := &Engine{
		fetcher:  fetcher,
		pipeline: pipeline,
		maxDepth: DefaultMaxDepth,
		pauser:   noPause{},
		inScope:  onion.IsInScope,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run crawls from seed within session until the frontier, the depth limit
// or the session budget is exhausted. A cancelled ctx stops the crawl after
// the page in progress; the returned error is then ctx.Err().
func (e *Engine) Run(ctx context.Context, session *Session, seed string) (Stats, error) {
	w := &walk{engine: e, session: session}
	w.visit(ctx, seed, 0)
	w.stats.Dispatched = session.Dispatched()
	return w.stats, ctx.Err()
}

// walk carries the per-run state of a traversal.
type walk struct {
	engine  *Engine
	session *Session
	stats   Stats
}

func (w *walk) visit(ctx context.Context, rawURL string, depth int) {
	e := w.engine
	if ctx.Err() != nil {
		return
	}

	pageURL := onion.Normalize(rawURL)
	if depth > e.maxDepth {
		return
	}
	if !w.session.Claim(pageURL) {
		return
	}

	e.logger.Info("visiting page", "url", pageURL, "depth", depth)
	body, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		w.stats.FetchFailures++
		e.logger.Warn("fetch failed", "url", pageURL, "error", err)
		return
	}

	if _, err := e.pipeline.Process(ctx, pageURL, body); err != nil {
		w.stats.PipelineFailures++
		e.logger.Error("page pipeline failed", "url", pageURL, "error", err)
	} else {
		w.stats.Results++
	}

	if err := e.pauser.Pause(ctx); err != nil {
		return
	}

	for _, link := range ExtractLinksInScope(body, pageURL, e.inScope) {
		if w.session.Exhausted() || ctx.Err() != nil {
			break
		}
		w.visit(ctx, link, depth+1)
	}
}
