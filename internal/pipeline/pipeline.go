package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/onioncrawl/internal/analyzer"
	"github.com/nao1215/onioncrawl/internal/model"
	"github.com/nao1215/onioncrawl/internal/store"
)

// Step is one stage of page processing.
type Step interface {
	// Do fills in its part of result from page. A returned error is logged
	// by the Pipeline and does not stop later steps.
	Do(ctx context.Context, page *Page, result *model.Result) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Page is a fetched document handed to every step.
type Page struct {
	URL  string
	HTML string

	doc    *analyzer.Document
	docErr error
	parsed bool
}

// NewPage returns a Page for the given normalized URL and HTML.
func NewPage(pageURL, html string) *Page {
	return &Page{URL: pageURL, HTML: html}
}

// Document returns the parsed HTML. It is parsed once and shared by steps.
func (p *Page) Document() (*analyzer.Document, error) {
	if !p.parsed {
		p.doc, p.docErr = analyzer.ParseDocument(p.HTML)
		p.parsed = true
	}
	return p.doc, p.docErr
}

// ResultObserver is notified of every stored Result.
type ResultObserver interface {
	Result(result *model.Result)
}

// Pipeline runs steps over a page and appends the Result to a store.
type Pipeline struct {
	steps    []Step
	store    store.Appender
	observer ResultObserver
	now      func() time.Time
	logger   *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithClock sets the source of Result timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithObserver registers an observer for stored Results.
func WithObserver(o ResultObserver) Option {
	return func(p *Pipeline) {
		p.observer = o
	}
}

// New creates a Pipeline that records Results in dst.
// Steps should be added using AddStep after creation.
func New(dst store.Appender, opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
		store: dst,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}

// Process builds the Result for one fetched page and appends it to the
// store. Step failures are logged and absorbed. An error is returned only
// when ctx is cancelled before the Result is complete or the store rejects
// the Result.
func (p *Pipeline) Process(ctx context.Context, pageURL, html string) (*model.Result, error) {
	result := model.NewResult(pageURL, p.now())
	page := NewPage(pageURL, html)

	for _, step := range p.steps {
		// Check for cancellation before starting each step
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"url", pageURL,
				"reason", err,
			)
			return nil, err
		}

		if err := step.Do(ctx, page, result); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", pageURL,
				"error", err,
			)
			continue
		}
		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", pageURL,
		)
	}

	if err := p.store.Append(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to record result for %s: %w", pageURL, err)
	}
	if p.observer != nil {
		p.observer.Result(result)
	}
	return result, nil
}
